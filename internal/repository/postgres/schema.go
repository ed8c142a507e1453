package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the tables used by the KV store and the billing sink.
const schema = `
CREATE TABLE IF NOT EXISTS session_kv (
	driver_id  TEXT        NOT NULL,
	key        TEXT        NOT NULL,
	value      BYTEA       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (driver_id, key)
);

CREATE TABLE IF NOT EXISTS billing_records (
	id              TEXT          PRIMARY KEY,
	driver_id       TEXT          NOT NULL,
	kind            TEXT          NOT NULL,
	started_at      TIMESTAMPTZ   NOT NULL,
	ended_at        TIMESTAMPTZ   NOT NULL,
	charged_seconds BIGINT        NOT NULL CHECK (charged_seconds >= 0),
	amount          NUMERIC(12,2) NOT NULL CHECK (amount >= 0),
	currency        TEXT          NOT NULL,
	received_at     TIMESTAMPTZ   NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS billing_records_driver_idx ON billing_records (driver_id, ended_at);

CREATE TABLE IF NOT EXISTS driver_live_meters (
	driver_id            TEXT        PRIMARY KEY,
	waiting_started_at   TIMESTAMPTZ,
	emergency_started_at TIMESTAMPTZ,
	synced_at            TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates missing tables.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
