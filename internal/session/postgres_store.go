package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists sessions as one JSONB row each. The upsert on save
// gives atomic replace semantics for free.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const sessionsSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL DEFAULT '',
	data        JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	last_active TIMESTAMPTZ NOT NULL
)`

// NewPostgresStore connects to Postgres and ensures the sessions table
// exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, sessionsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure sessions table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Create allocates a session with a fresh unique ID and empty state.
func (s *PostgresStore) Create(ctx context.Context, userID string) (*Session, error) {
	sess := newSession(userID)
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get retrieves a session by ID.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Session, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM sessions WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get session %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("query session %q: %w", id, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session %q: %w", id, err)
	}
	return &sess, nil
}

// Save upserts the session row, replacing the full record.
func (s *PostgresStore) Save(ctx context.Context, sess *Session) error {
	sess.LastActive = time.Now()
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session %q: %w", sess.ID, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, data, created_at, last_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET data = EXCLUDED.data, last_active = EXCLUDED.last_active`,
		sess.ID, sess.UserID, data, sess.CreatedAt, sess.LastActive)
	if err != nil {
		return fmt.Errorf("save session %q: %w", sess.ID, err)
	}
	return nil
}

// Delete removes a session by ID.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session %q: %w", id, err)
	}
	return nil
}

// PurgeExpired removes sessions idle longer than olderThan.
func (s *PostgresStore) PurgeExpired(ctx context.Context, olderThan time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM sessions WHERE last_active < $1`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
