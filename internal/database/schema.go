package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Schema contains all table definitions for the aggregator's history store.
// Everything here is already anonymized: hashed identifiers, bucket labels,
// and network-wide counts only.
var Schema = []string{
	// Immutable snapshot history, one row per aggregation interval.
	`CREATE TABLE IF NOT EXISTS network_snapshots (
		id BIGSERIAL PRIMARY KEY,
		taken_at TIMESTAMPTZ NOT NULL,
		active_nodes INTEGER NOT NULL,
		total_nodes INTEGER NOT NULL,
		total_tasks INTEGER NOT NULL,
		completed_tasks INTEGER NOT NULL,
		failed_tasks INTEGER NOT NULL,
		cached_tasks INTEGER NOT NULL,
		total_invoices INTEGER NOT NULL,
		success_rate DOUBLE PRECISION NOT NULL,
		cache_hit_rate DOUBLE PRECISION NOT NULL,
		approx_total_gas BIGINT NOT NULL,
		approx_total_steps BIGINT NOT NULL,
		distributions JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_network_snapshots_taken_at ON network_snapshots(taken_at)`,

	// Per-event detail rows kept for the retention window.
	`CREATE TABLE IF NOT EXISTS telemetry_events (
		id BIGSERIAL PRIMARY KEY,
		received_at TIMESTAMPTZ NOT NULL,
		subject TEXT NOT NULL,
		event_type TEXT NOT NULL,
		node_id TEXT NOT NULL DEFAULT '',
		payload JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_telemetry_events_received_at ON telemetry_events(received_at)`,
	`CREATE INDEX IF NOT EXISTS idx_telemetry_events_event_type ON telemetry_events(event_type)`,
}

// InitSchema applies all table definitions in a single transaction.
func InitSchema(ctx context.Context, db Database) error {
	return db.WithTx(ctx, func(tx pgx.Tx) error {
		for _, stmt := range Schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("applying schema statement: %w", err)
			}
		}
		return nil
	})
}
