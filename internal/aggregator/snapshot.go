package aggregator

import (
	"context"
	"time"

	"truewatch/internal/privacy"
	"truewatch/internal/protocol"
)

// Snapshot is the derived network-wide view, recomputed from the current
// record sets on every publish interval. ApproxTotalGas and ApproxTotalSteps
// are sums of bucket lower bounds: lossy, conservative estimates, never
// exact values.
type Snapshot struct {
	TakenAt time.Time

	ActiveNodes int
	TotalNodes  int

	TotalTasks     int
	CompletedTasks int
	FailedTasks    int
	CachedTasks    int
	TotalInvoices  int

	SuccessRate  float64
	CacheHitRate float64

	ApproxTotalGas   int64
	ApproxTotalSteps int64

	ByChain     map[string]int
	ByTaskType  map[string]int
	ByElapsed   map[string]int
	ByGas       map[string]int
	BySteps     map[string]int
	ByMemory    map[string]int
	ByContinent map[string]int
}

// Snapshot computes the current network statistics. A peer counts as active
// when it has not left and was heard from within the staleness threshold.
func (ag *Aggregator) Snapshot() *Snapshot {
	now := ag.now()
	snap := &Snapshot{
		TakenAt:     now,
		ByChain:     make(map[string]int),
		ByTaskType:  make(map[string]int),
		ByElapsed:   make(map[string]int),
		ByGas:       make(map[string]int),
		BySteps:     make(map[string]int),
		ByMemory:    make(map[string]int),
		ByContinent: make(map[string]int),
	}

	ag.mu.RLock()
	defer ag.mu.RUnlock()

	cutoff := now.Add(-ag.cfg.StaleThreshold)
	for _, p := range ag.peers {
		snap.TotalNodes++
		if !p.Left && !p.LastSeen.Before(cutoff) {
			snap.ActiveNodes++
		}
		if p.Continent != "" {
			snap.ByContinent[p.Continent]++
		}
	}

	for _, t := range ag.tasks {
		snap.TotalTasks++
		if t.Chain != "" {
			snap.ByChain[t.Chain]++
		}
		if t.TaskType != "" {
			snap.ByTaskType[t.TaskType]++
		}
		if !t.Completed {
			continue
		}
		switch t.Status {
		case "success":
			snap.CompletedTasks++
		case "failed":
			snap.FailedTasks++
		}
		if t.Cached {
			snap.CachedTasks++
		}
		if t.ElapsedBucket != "" {
			snap.ByElapsed[t.ElapsedBucket]++
		}
		if t.GasBucket != "" {
			snap.ByGas[t.GasBucket]++
			snap.ApproxTotalGas += ApproxLowerBound(t.GasBucket)
		}
		if t.StepsBucket != "" {
			snap.BySteps[t.StepsBucket]++
			snap.ApproxTotalSteps += ApproxLowerBound(t.StepsBucket)
		}
		if t.MemoryBucket != "" {
			snap.ByMemory[t.MemoryBucket]++
		}
	}

	snap.TotalInvoices = len(ag.invoices)

	if finished := snap.CompletedTasks + snap.FailedTasks; finished > 0 {
		snap.SuccessRate = float64(snap.CompletedTasks) / float64(finished)
		snap.CacheHitRate = float64(snap.CachedTasks) / float64(finished)
	}

	return snap
}

// Envelope converts the snapshot to a network_stats envelope. The nodeId is
// deliberately empty: summaries are not attributable to a node, and other
// aggregator instances skip them on ingestion.
func (s *Snapshot) Envelope() *protocol.Envelope {
	return protocol.NewEnvelope(protocol.EventNetworkStats, "", privacy.RoundTimestamp(s.TakenAt), map[string]any{
		"activeNodes":      s.ActiveNodes,
		"totalNodes":       s.TotalNodes,
		"totalTasks":       s.TotalTasks,
		"completedTasks":   s.CompletedTasks,
		"failedTasks":      s.FailedTasks,
		"cachedTasks":      s.CachedTasks,
		"totalInvoices":    s.TotalInvoices,
		"successRate":      s.SuccessRate,
		"cacheHitRate":     s.CacheHitRate,
		"approxTotalGas":   s.ApproxTotalGas,
		"approxTotalSteps": s.ApproxTotalSteps,
		"byChain":          s.ByChain,
		"byTaskType":       s.ByTaskType,
		"byExecutionTime":  s.ByElapsed,
		"byGasUsed":        s.ByGas,
		"byStepsComputed":  s.BySteps,
		"byMemoryUsed":     s.ByMemory,
		"byContinent":      s.ByContinent,
	})
}

// publishSnapshot recomputes, publishes, and persists one snapshot. Every
// failure here is logged and retried on the next interval; a bad cycle is
// never fatal to the process.
func (ag *Aggregator) publishSnapshot(ctx context.Context) {
	snap := ag.Snapshot()

	ok, err := ag.client.Publish(ctx, protocol.SubjectStatsAggregated, snap.Envelope())
	switch {
	case err != nil:
		ag.log.WithError(err).Error("failed to publish network stats")
	case !ok:
		ag.log.Debug("network stats publish dropped by backpressure")
	}

	if ag.store != nil {
		if err := ag.store.SaveSnapshot(ctx, snap); err != nil {
			ag.log.WithError(err).Error("failed to persist snapshot")
		}
	}

	if ag.metrics != nil {
		ag.metrics.ActiveNodes.Set(float64(snap.ActiveNodes))
		ag.metrics.TotalNodes.Set(float64(snap.TotalNodes))
		ag.metrics.TrackedTasks.Set(float64(snap.TotalTasks))
		ag.metrics.SnapshotsPublished.Inc()
	}
}
