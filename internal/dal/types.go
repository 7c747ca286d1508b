package dal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Billy-Davies-2/lottery-draft-ui/internal/models"
)

const (
	DefaultRecentLimit = 50
	MaxRecentLimit     = 500
)

// Journal is an append-only log of the draft events views have observed. It is an
// audit trail only; the lottery service stays the source of truth for draft state.
type Journal interface {
	Record(ctx context.Context, entry *models.JournalEntry) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]models.JournalEntry, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open builds the journal for a DB_DRIVER value.
func Open(driver, sqliteFile, databaseURL, redisURL string) (Journal, error) {
	switch driver {
	case "", "memory":
		return NewMemoryJournal(), nil
	case "sqlite":
		return NewSQLiteJournal(sqliteFile)
	case "postgres":
		return NewPostgresJournal(databaseURL)
	case "redis":
		return NewRedisJournal(redisURL)
	default:
		return nil, fmt.Errorf("unknown journal driver %q", driver)
	}
}

// prepare fills in the ID and timestamp when the caller left them empty.
func prepare(entry *models.JournalEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRecentLimit
	case limit > MaxRecentLimit:
		return MaxRecentLimit
	default:
		return limit
	}
}
