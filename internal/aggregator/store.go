package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"truewatch/internal/database"
	"truewatch/internal/protocol"
)

// Store persists snapshot history and per-event detail. Implementations
// must tolerate being called concurrently with retention cleanup.
type Store interface {
	SaveSnapshot(ctx context.Context, snap *Snapshot) error
	SaveEvent(ctx context.Context, receivedAt time.Time, subject string, env *protocol.Envelope) error
	DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PostgresStore implements Store on the shared database layer.
type PostgresStore struct {
	db database.Database
}

// NewPostgresStore initializes the schema and returns a store.
func NewPostgresStore(ctx context.Context, db database.Database) (*PostgresStore, error) {
	if err := database.InitSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// SaveSnapshot appends one immutable history row.
func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	distributions, err := json.Marshal(map[string]map[string]int{
		"byChain":         snap.ByChain,
		"byTaskType":      snap.ByTaskType,
		"byExecutionTime": snap.ByElapsed,
		"byGasUsed":       snap.ByGas,
		"byStepsComputed": snap.BySteps,
		"byMemoryUsed":    snap.ByMemory,
		"byContinent":     snap.ByContinent,
	})
	if err != nil {
		return fmt.Errorf("encoding distributions: %w", err)
	}

	_, err = s.db.GetPool().Exec(ctx, `
		INSERT INTO network_snapshots (
			taken_at, active_nodes, total_nodes, total_tasks,
			completed_tasks, failed_tasks, cached_tasks, total_invoices,
			success_rate, cache_hit_rate, approx_total_gas,
			approx_total_steps, distributions
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		snap.TakenAt, snap.ActiveNodes, snap.TotalNodes, snap.TotalTasks,
		snap.CompletedTasks, snap.FailedTasks, snap.CachedTasks, snap.TotalInvoices,
		snap.SuccessRate, snap.CacheHitRate, snap.ApproxTotalGas,
		snap.ApproxTotalSteps, distributions,
	)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}
	return nil
}

// SaveEvent appends one anonymized event detail row.
func (s *PostgresStore) SaveEvent(ctx context.Context, receivedAt time.Time, subject string, env *protocol.Envelope) error {
	payload, err := env.Encode()
	if err != nil {
		return fmt.Errorf("encoding event payload: %w", err)
	}

	_, err = s.db.GetPool().Exec(ctx, `
		INSERT INTO telemetry_events (received_at, subject, event_type, node_id, payload)
		VALUES ($1, $2, $3, $4, $5)`,
		receivedAt, subject, env.Type, env.NodeID, payload,
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// DeleteSnapshotsBefore prunes history rows past the retention window.
func (s *PostgresStore) DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.GetPool().Exec(ctx,
		`DELETE FROM network_snapshots WHERE taken_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteEventsBefore prunes event detail rows past the retention window.
func (s *PostgresStore) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.GetPool().Exec(ctx,
		`DELETE FROM telemetry_events WHERE received_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting events: %w", err)
	}
	return tag.RowsAffected(), nil
}
