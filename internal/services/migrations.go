package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-taskboard/internal/realtime"
)

// notifyPayloadLimit keeps trigger payloads under the 8000 byte
// pg_notify limit.
const notifyPayloadLimit = 7900

var schemaStatements = []string{
	`
CREATE TABLE IF NOT EXISTS users (
    id         UUID PRIMARY KEY,
    email      TEXT        NOT NULL UNIQUE,
    password   TEXT        NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`,
	`
CREATE TABLE IF NOT EXISTS profiles (
    user_id    UUID PRIMARY KEY REFERENCES users (id) ON DELETE CASCADE,
    email      TEXT        NOT NULL,
    handle     TEXT        NOT NULL UNIQUE,
    created_at TIMESTAMPTZ NOT NULL
)`,
	`
CREATE TABLE IF NOT EXISTS tasks (
    id          UUID PRIMARY KEY,
    user_id     UUID        NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    title       TEXT        NOT NULL,
    description TEXT        NOT NULL DEFAULT '',
    status      TEXT        NOT NULL DEFAULT 'todo'
        CHECK (status IN ('todo', 'in-progress', 'done')),
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL,
    due_date    TIMESTAMPTZ
)`,
	`CREATE INDEX IF NOT EXISTS tasks_user_id_created_at_idx ON tasks (user_id, created_at DESC)`,
	`
CREATE TABLE IF NOT EXISTS task_collaborators (
    id         UUID PRIMARY KEY,
    task_id    UUID        NOT NULL REFERENCES tasks (id) ON DELETE CASCADE,
    user_id    UUID        NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    added_by   UUID        NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    created_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS task_collaborators_task_id_user_id_idx ON task_collaborators (task_id, user_id)`,
	`CREATE INDEX IF NOT EXISTS task_collaborators_user_id_idx ON task_collaborators (user_id)`,
	`
CREATE TABLE IF NOT EXISTS subscriptions (
    user_id            UUID PRIMARY KEY REFERENCES users (id) ON DELETE CASCADE,
    stripe_customer_id TEXT,
    status             TEXT        NOT NULL,
    current_period_end TIMESTAMPTZ,
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	fmt.Sprintf(`
CREATE OR REPLACE FUNCTION taskboard_notify_change() RETURNS trigger AS $$
DECLARE
    new_row JSONB;
    old_row JSONB;
    payload JSONB;
BEGIN
    IF TG_OP <> 'DELETE' THEN
        new_row := to_jsonb(NEW);
    END IF;
    IF TG_OP <> 'INSERT' THEN
        old_row := to_jsonb(OLD);
    END IF;

    payload := jsonb_build_object('table', TG_TABLE_NAME, 'type', TG_OP, 'new', new_row, 'old', old_row);
    IF octet_length(payload::TEXT) > %d THEN
        payload := jsonb_build_object(
            'table', TG_TABLE_NAME,
            'type', TG_OP,
            'partial', TRUE,
            'new', new_row - 'description',
            'old', old_row - 'description');
    END IF;

    PERFORM pg_notify('%s', payload::TEXT);
    RETURN NULL;
END;
$$ LANGUAGE plpgsql`, notifyPayloadLimit, realtime.Channel),
	`DROP TRIGGER IF EXISTS tasks_notify_change ON tasks`,
	`
CREATE TRIGGER tasks_notify_change
    AFTER INSERT OR UPDATE OR DELETE ON tasks
    FOR EACH ROW EXECUTE FUNCTION taskboard_notify_change()`,
	`DROP TRIGGER IF EXISTS task_collaborators_notify_change ON task_collaborators`,
	`
CREATE TRIGGER task_collaborators_notify_change
    AFTER INSERT OR DELETE ON task_collaborators
    FOR EACH ROW EXECUTE FUNCTION taskboard_notify_change()`,
}

// EnsureSchema creates the tables, indexes and change triggers if they
// are missing. It is safe to run on every start.
func EnsureSchema(ctx context.Context, logger zerolog.Logger, pgPool *pgxpool.Pool) error {
	tx, err := pgPool.Begin(ctx)
	if err != nil {
		logger.Error().
			Err(err).
			Msg("failed to begin transaction")
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i, stmt := range schemaStatements {
		_, err = tx.Exec(ctx, stmt)
		if err != nil {
			logger.Error().
				Err(err).
				Int("statement", i).
				Msg("failed to apply schema")
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}

	err = tx.Commit(ctx)
	if err != nil {
		logger.Error().
			Err(err).
			Msg("failed to commit transaction")
		return err
	}

	logger.Info().
		Int("statements", len(schemaStatements)).
		Msg("ensured schema")
	return nil
}
