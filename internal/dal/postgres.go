package dal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresJournal stores the journal in PostgreSQL (CloudNativePG in production).
type PostgresJournal struct {
	sqlJournal
}

func NewPostgresJournal(connString string) (*PostgresJournal, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute) // recycle across failovers
	db.SetConnMaxIdleTime(time.Minute)

	// Kubernetes DNS can lag behind pod start; retry the first ping.
	const maxRetries = 5
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		lastErr = db.PingContext(ctx)
		cancel()
		if lastErr == nil {
			break
		}
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if lastErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres after %d retries: %w", maxRetries, lastErr)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS draft_journal (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		view_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		team_name TEXT NOT NULL DEFAULT '',
		previous_name TEXT NOT NULL DEFAULT '',
		pick_number INTEGER NOT NULL DEFAULT 0,
		percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_draft_journal_kind ON draft_journal(kind);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create postgres schema: %w", err)
	}

	return &PostgresJournal{sqlJournal{
		db: db,
		insertSQL: `INSERT INTO draft_journal
			(id, view_id, kind, team_name, previous_name, pick_number, percentage, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING`,
		recentSQL: `SELECT id, view_id, kind, team_name, previous_name, pick_number, percentage, created_at
			FROM draft_journal ORDER BY seq DESC LIMIT $1`,
	}}, nil
}
