package postgres

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id              TEXT PRIMARY KEY,
	hotel_id        TEXT NOT NULL,
	name            TEXT NOT NULL,
	price_per_night DOUBLE PRECISION NOT NULL CHECK (price_per_night >= 0),
	currency        TEXT NOT NULL,
	max_guests      INTEGER NOT NULL CHECK (max_guests > 0),
	max_adults      INTEGER NOT NULL DEFAULT 0,
	max_children    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS blackout_days (
	hotel_id TEXT NOT NULL,
	day      DATE NOT NULL,
	PRIMARY KEY (hotel_id, day)
);

CREATE TABLE IF NOT EXISTS promo_codes (
	code         TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	value        DOUBLE PRECISION NOT NULL,
	min_amount   DOUBLE PRECISION,
	max_discount DOUBLE PRECISION,
	valid_until  TIMESTAMPTZ,
	is_valid     BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS reservations (
	confirmation_number TEXT PRIMARY KEY,
	session_id          TEXT NOT NULL,
	idempotency_key     TEXT NOT NULL UNIQUE,
	state               JSONB NOT NULL,
	receipt             JSONB NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL
);
`

// Migrate creates the tables when they do not exist yet.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	db.l.LogInfo("Postgres schema is up to date")

	return nil
}
