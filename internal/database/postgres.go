package database

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// PoolConfig bounds the PostgreSQL connection pool.
type PoolConfig struct {
	MaxOpenConns int
	MinIdleConns int
}

// OpenPostgres opens a pooled connection to PostgreSQL, checks it is
// reachable and makes sure the schema exists. The caller owns the returned
// pool and must Close it.
func OpenPostgres(ctx context.Context, postgresURI string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", postgresURI)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MinIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("✅ Connected to PostgreSQL", "max_open_conns", pool.MaxOpenConns)

	if err := EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates all tables and indexes if they don't exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS therapy_sessions (
			session_id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			therapy_type VARCHAR(16) NOT NULL CHECK (therapy_type IN ('words', 'numbers')),
			therapy_category VARCHAR(100),
			started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			ended_at TIMESTAMPTZ,
			status VARCHAR(16) NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'completed', 'abandoned')),
			total_questions INTEGER NOT NULL DEFAULT 0,
			correct_answers INTEGER NOT NULL DEFAULT 0,
			CHECK (correct_answers >= 0 AND correct_answers <= total_questions)
		)`,

		// At most one active session per user and therapy type.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_therapy_sessions_active
			ON therapy_sessions(user_id, therapy_type) WHERE status = 'active'`,

		`CREATE TABLE IF NOT EXISTS therapy_answers (
			answer_id BIGSERIAL PRIMARY KEY,
			session_id BIGINT NOT NULL REFERENCES therapy_sessions(session_id),
			question_text TEXT NOT NULL,
			expected_answer TEXT NOT NULL,
			user_answer TEXT NOT NULL,
			pronunciation_score NUMERIC(5, 2) NOT NULL,
			is_correct BOOLEAN NOT NULL,
			error_type VARCHAR(100),
			error_details JSONB,
			answered_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_therapy_sessions_user_status ON therapy_sessions(user_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_therapy_sessions_started_at ON therapy_sessions(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_therapy_answers_session_answered ON therapy_answers(session_id, answered_at DESC)`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return err
		}
	}

	slog.Info("✅ PostgreSQL tables initialized")
	return nil
}
