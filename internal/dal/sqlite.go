package dal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteJournal stores the journal in a local SQLite file.
type SQLiteJournal struct {
	sqlJournal
}

func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// a single writer avoids "database is locked" under concurrent recorders
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS draft_journal (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		view_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		team_name TEXT NOT NULL DEFAULT '',
		previous_name TEXT NOT NULL DEFAULT '',
		pick_number INTEGER NOT NULL DEFAULT 0,
		percentage REAL NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_draft_journal_kind ON draft_journal(kind);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sqlite schema: %w", err)
	}

	return &SQLiteJournal{sqlJournal{
		db: db,
		insertSQL: `INSERT INTO draft_journal
			(id, view_id, kind, team_name, previous_name, pick_number, percentage, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		recentSQL: `SELECT id, view_id, kind, team_name, previous_name, pick_number, percentage, created_at
			FROM draft_journal ORDER BY seq DESC LIMIT ?`,
	}}, nil
}
