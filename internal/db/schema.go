package db

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
        id          BIGSERIAL PRIMARY KEY,
        telegram_id BIGINT UNIQUE NOT NULL,
        chat_id     BIGINT NOT NULL DEFAULT 0,
        username    TEXT NOT NULL DEFAULT '',
        created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,
	`CREATE TABLE IF NOT EXISTS user_profiles (
        user_id              BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
        name                 TEXT NOT NULL,
        date_of_birth        DATE NOT NULL,
        gender               TEXT NOT NULL,
        height_cm            DOUBLE PRECISION NOT NULL CHECK (height_cm > 0),
        weight_kg            DOUBLE PRECISION NOT NULL CHECK (weight_kg > 0),
        activity_level       TEXT NOT NULL,
        goal                 TEXT NOT NULL,
        timeline_weeks       INTEGER NOT NULL CHECK (timeline_weeks > 0),
        dietary_restrictions TEXT[] NOT NULL DEFAULT '{}',
        created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,
	`CREATE TABLE IF NOT EXISTS meal_logs (
        id          BIGSERIAL PRIMARY KEY,
        user_id     BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
        date        DATE NOT NULL,
        name        TEXT NOT NULL,
        ingredients JSONB NOT NULL DEFAULT '{}',
        protein     DOUBLE PRECISION,
        fat         DOUBLE PRECISION,
        carbs       DOUBLE PRECISION,
        calories    DOUBLE PRECISION,
        created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,
	`CREATE INDEX IF NOT EXISTS meal_logs_user_date_idx ON meal_logs (user_id, date)`,
	`CREATE TABLE IF NOT EXISTS pantry_entries (
        user_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
        date       DATE NOT NULL,
        ingredient TEXT NOT NULL,
        quantity   DOUBLE PRECISION CHECK (quantity >= 0),
        unit       TEXT NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        PRIMARY KEY (user_id, date, ingredient)
    )`,
	`CREATE TABLE IF NOT EXISTS weekly_meal_plans (
        user_id      BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
        week_start   DATE NOT NULL,
        plan_text    TEXT NOT NULL,
        generated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        PRIMARY KEY (user_id, week_start)
    )`,
	`CREATE TABLE IF NOT EXISTS recipes (
        id           BIGSERIAL PRIMARY KEY,
        title        TEXT NOT NULL,
        image_url    TEXT NOT NULL DEFAULT '',
        diet         TEXT[] NOT NULL DEFAULT '{}',
        ingredients  JSONB NOT NULL DEFAULT '{}',
        calories     INTEGER NOT NULL DEFAULT 0,
        protein      INTEGER NOT NULL DEFAULT 0,
        fat          INTEGER NOT NULL DEFAULT 0,
        carbs        INTEGER NOT NULL DEFAULT 0,
        instructions TEXT NOT NULL DEFAULT '',
        created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,
}

// EnsureSchema creates missing tables and indexes. Existing tables are left alone.
func (db *PostgresDB) EnsureSchema(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
