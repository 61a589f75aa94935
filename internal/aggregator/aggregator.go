// Package aggregator consumes the anonymized event stream and maintains
// rolling network-wide statistics. Records are upserts keyed by hashed
// identifiers, so replayed or out-of-order envelopes are idempotent: a
// task_completed arriving before its task_received simply creates the
// record.
package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"truewatch/internal/config"
	"truewatch/internal/federation"
	"truewatch/internal/protocol"
)

// PeerRecord tracks one node observed on the bus.
type PeerRecord struct {
	NodeID            string
	FirstSeen         time.Time
	LastSeen          time.Time
	Version           string
	Continent         string
	ActiveTasksBucket string
	TotalTasksBucket  string
	Left              bool
}

// TaskRecord tracks one task by its salted hash. All metric fields are
// bucket labels as they arrived on the wire.
type TaskRecord struct {
	TaskIDHash    string
	NodeID        string
	Chain         string
	TaskType      string
	Status        string
	ElapsedBucket string
	GasBucket     string
	StepsBucket   string
	MemoryBucket  string
	Cached        bool
	Completed     bool
	FirstSeen     time.Time
	LastSeen      time.Time
}

// InvoiceRecord tracks one invoice by its salted hash.
type InvoiceRecord struct {
	InvoiceIDHash string
	NodeID        string
	Chain         string
	AmountBucket  string
	FirstSeen     time.Time
	LastSeen      time.Time
}

// Aggregator is the long-running consumer process. It owns its record maps;
// all mutation happens under one lock so snapshots see consistent state.
type Aggregator struct {
	cfg     *config.Config
	client  *federation.Client
	store   Store
	log     *logrus.Entry
	now     func() time.Time
	metrics *Metrics

	mu       sync.RWMutex
	peers    map[string]*PeerRecord
	tasks    map[string]*TaskRecord
	invoices map[string]*InvoiceRecord

	// Persistence is decoupled from message handling so a slow database
	// never blocks the subscription dispatch goroutines.
	events  chan storedEvent
	dropped int64
	wg      sync.WaitGroup
}

type storedEvent struct {
	receivedAt time.Time
	subject    string
	env        *protocol.Envelope
}

const eventQueueSize = 256

// Option customizes an aggregator.
type Option func(*Aggregator)

// WithStore attaches a history store. Without one the aggregator runs
// purely in memory.
func WithStore(s Store) Option {
	return func(ag *Aggregator) { ag.store = s }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(ag *Aggregator) { ag.metrics = m }
}

// New creates an aggregator around an already constructed client.
func New(cfg *config.Config, client *federation.Client, logger *logrus.Logger, opts ...Option) *Aggregator {
	ag := &Aggregator{
		cfg:      cfg,
		client:   client,
		log:      logger.WithField("component", "aggregator"),
		now:      time.Now,
		peers:    make(map[string]*PeerRecord),
		tasks:    make(map[string]*TaskRecord),
		invoices: make(map[string]*InvoiceRecord),
		events:   make(chan storedEvent, eventQueueSize),
	}
	for _, opt := range opts {
		opt(ag)
	}
	return ag
}

// Run subscribes to all anonymized subjects and drives the periodic work:
// snapshot publishing, retention cleanup, and stale-peer eviction. It
// blocks until ctx is cancelled.
func (ag *Aggregator) Run(ctx context.Context) error {
	subjects := []string{
		protocol.SubjectTasksReceived,
		protocol.SubjectTasksCompleted,
		protocol.SubjectHeartbeat,
		protocol.SubjectInvoicesCreated,
		protocol.SubjectNodesJoined,
		protocol.SubjectNodesLeft,
	}
	for _, subject := range subjects {
		if _, err := ag.client.Subscribe(subject, ag.HandleEnvelope); err != nil {
			return err
		}
	}

	if ag.store != nil {
		ag.wg.Add(1)
		go ag.storeLoop(ctx)
	}

	publishTicker := time.NewTicker(ag.cfg.PublishInterval)
	cleanupTicker := time.NewTicker(ag.cfg.CleanupInterval)
	evictionTicker := time.NewTicker(ag.cfg.EvictionInterval)
	defer publishTicker.Stop()
	defer cleanupTicker.Stop()
	defer evictionTicker.Stop()

	ag.log.WithField("subjects", len(subjects)).Info("aggregator running")

	for {
		select {
		case <-ctx.Done():
			ag.wg.Wait()
			return nil
		case <-publishTicker.C:
			ag.publishSnapshot(ctx)
		case <-cleanupTicker.C:
			ag.cleanupHistory(ctx)
		case <-evictionTicker.C:
			ag.EvictStalePeers(ctx)
		}
	}
}

// HandleEnvelope ingests one decoded envelope. Envelopes without a nodeId
// (another aggregator's network_stats summary) are ignored.
func (ag *Aggregator) HandleEnvelope(subject string, env *protocol.Envelope) {
	if env.NodeID == "" {
		return
	}

	switch env.Type {
	case protocol.EventHeartbeat, protocol.EventNodeJoined:
		ag.upsertPeer(env, false)
	case protocol.EventNodeLeft:
		ag.upsertPeer(env, true)
	case protocol.EventTaskReceived:
		ag.upsertPeer(env, false)
		ag.upsertTask(env, false)
	case protocol.EventTaskCompleted:
		ag.upsertPeer(env, false)
		ag.upsertTask(env, true)
	case protocol.EventInvoiceCreated:
		ag.upsertPeer(env, false)
		ag.upsertInvoice(env)
	default:
		return
	}

	if ag.store != nil {
		select {
		case ag.events <- storedEvent{receivedAt: ag.now(), subject: subject, env: env}:
		default:
			ag.mu.Lock()
			ag.dropped++
			dropped := ag.dropped
			ag.mu.Unlock()
			if ag.metrics != nil {
				ag.metrics.EventsDropped.Inc()
			}
			ag.log.WithField("dropped", dropped).Debug("persistence queue full, event detail lost")
		}
	}
}

func (ag *Aggregator) upsertPeer(env *protocol.Envelope, left bool) {
	now := ag.now()
	ag.mu.Lock()
	defer ag.mu.Unlock()

	p, ok := ag.peers[env.NodeID]
	if !ok {
		p = &PeerRecord{NodeID: env.NodeID, FirstSeen: now}
		ag.peers[env.NodeID] = p
	}
	p.LastSeen = now
	p.Left = left
	if v, ok := stringField(env, "version"); ok {
		p.Version = v
	}
	if v, ok := stringField(env, "continent"); ok {
		p.Continent = v
	}
	if v, ok := stringField(env, "activeTasks"); ok {
		p.ActiveTasksBucket = v
	}
	if v, ok := stringField(env, "totalTasks"); ok {
		p.TotalTasksBucket = v
	}
}

func (ag *Aggregator) upsertTask(env *protocol.Envelope, completed bool) {
	hash, ok := stringField(env, "taskIdHash")
	if !ok || hash == "" {
		return
	}

	now := ag.now()
	ag.mu.Lock()
	defer ag.mu.Unlock()

	t, ok := ag.tasks[hash]
	if !ok {
		t = &TaskRecord{TaskIDHash: hash, FirstSeen: now}
		ag.tasks[hash] = t
	}
	t.LastSeen = now
	t.NodeID = env.NodeID
	if v, ok := stringField(env, "chain"); ok {
		t.Chain = v
	}
	if v, ok := stringField(env, "taskType"); ok {
		t.TaskType = v
	}
	if !completed {
		return
	}
	t.Completed = true
	if v, ok := stringField(env, "status"); ok {
		t.Status = v
	}
	if v, ok := stringField(env, "executionTime"); ok {
		t.ElapsedBucket = v
	}
	if v, ok := stringField(env, "gasUsed"); ok {
		t.GasBucket = v
	}
	if v, ok := stringField(env, "stepsComputed"); ok {
		t.StepsBucket = v
	}
	if v, ok := stringField(env, "memoryUsed"); ok {
		t.MemoryBucket = v
	}
	if v, ok := env.Data["cached"].(bool); ok {
		t.Cached = v
	}
}

func (ag *Aggregator) upsertInvoice(env *protocol.Envelope) {
	hash, ok := stringField(env, "invoiceIdHash")
	if !ok || hash == "" {
		return
	}

	now := ag.now()
	ag.mu.Lock()
	defer ag.mu.Unlock()

	inv, ok := ag.invoices[hash]
	if !ok {
		inv = &InvoiceRecord{InvoiceIDHash: hash, FirstSeen: now}
		ag.invoices[hash] = inv
	}
	inv.LastSeen = now
	inv.NodeID = env.NodeID
	if v, ok := stringField(env, "chain"); ok {
		inv.Chain = v
	}
	if v, ok := stringField(env, "amount"); ok {
		inv.AmountBucket = v
	}
}

// EvictStalePeers removes peers silent past the staleness threshold. The
// sweep runs in small batches with a short pause between them so a large
// eviction never holds the lock for long.
func (ag *Aggregator) EvictStalePeers(ctx context.Context) int {
	cutoff := ag.now().Add(-ag.cfg.StaleThreshold)

	ag.mu.RLock()
	stale := make([]string, 0)
	for id, p := range ag.peers {
		if p.LastSeen.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	ag.mu.RUnlock()

	evicted := 0
	batch := ag.cfg.EvictionBatchSize
	for start := 0; start < len(stale); start += batch {
		end := start + batch
		if end > len(stale) {
			end = len(stale)
		}
		ag.mu.Lock()
		for _, id := range stale[start:end] {
			if p, ok := ag.peers[id]; ok && p.LastSeen.Before(cutoff) {
				delete(ag.peers, id)
				evicted++
			}
		}
		ag.mu.Unlock()

		if end < len(stale) && ag.cfg.EvictionBatchDelay > 0 {
			select {
			case <-ctx.Done():
				return evicted
			case <-time.After(ag.cfg.EvictionBatchDelay):
			}
		}
	}

	if evicted > 0 {
		ag.log.WithField("evicted", evicted).Info("removed stale peers")
		if ag.metrics != nil {
			ag.metrics.PeersEvicted.Add(float64(evicted))
		}
	}
	return evicted
}

func (ag *Aggregator) cleanupHistory(ctx context.Context) {
	if ag.store == nil {
		return
	}
	cutoff := ag.now().Add(-ag.cfg.RetentionWindow())

	snapshots, err := ag.store.DeleteSnapshotsBefore(ctx, cutoff)
	if err != nil {
		ag.log.WithError(err).Error("snapshot retention cleanup failed")
	}
	events, err := ag.store.DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		ag.log.WithError(err).Error("event retention cleanup failed")
	}
	if snapshots > 0 || events > 0 {
		ag.log.WithFields(logrus.Fields{
			"snapshots": snapshots,
			"events":    events,
		}).Info("pruned history past retention window")
	}
}

func (ag *Aggregator) storeLoop(ctx context.Context) {
	defer ag.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ag.events:
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := ag.store.SaveEvent(saveCtx, ev.receivedAt, ev.subject, ev.env); err != nil {
				ag.log.WithError(err).Debug("failed to persist event detail")
			}
			cancel()
		}
	}
}

func stringField(env *protocol.Envelope, key string) (string, bool) {
	v, ok := env.Data[key].(string)
	return v, ok
}
