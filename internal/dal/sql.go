package dal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Billy-Davies-2/lottery-draft-ui/internal/models"
)

// sqlJournal is shared by the SQLite and Postgres journals; they differ only in
// schema and placeholder syntax.
type sqlJournal struct {
	db        *sql.DB
	insertSQL string
	recentSQL string
}

func (s *sqlJournal) Record(ctx context.Context, entry *models.JournalEntry) error {
	prepare(entry)
	_, err := s.db.ExecContext(ctx, s.insertSQL,
		entry.ID, entry.ViewID, string(entry.Kind), entry.TeamName, entry.PreviousName,
		entry.PickNumber, entry.Percentage, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

func (s *sqlJournal) Recent(ctx context.Context, limit int) ([]models.JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.recentSQL, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	out := []models.JournalEntry{}
	for rows.Next() {
		var (
			e    models.JournalEntry
			kind string
		)
		if err := rows.Scan(&e.ID, &e.ViewID, &kind, &e.TeamName, &e.PreviousName,
			&e.PickNumber, &e.Percentage, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Kind = models.JournalKind(kind)
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqlJournal) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlJournal) Close() error {
	return s.db.Close()
}
