package dal

import (
	"context"
	"sync"

	"github.com/Billy-Davies-2/lottery-draft-ui/internal/models"
)

// MemoryJournal keeps the most recent entries in a bounded slice.
type MemoryJournal struct {
	mu      sync.RWMutex
	entries []models.JournalEntry
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{entries: []models.JournalEntry{}}
}

func (m *MemoryJournal) Record(_ context.Context, entry *models.JournalEntry) error {
	prepare(entry)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	if over := len(m.entries) - MaxRecentLimit; over > 0 {
		m.entries = append(m.entries[:0:0], m.entries[over:]...)
	}
	return nil
}

func (m *MemoryJournal) Recent(_ context.Context, limit int) ([]models.JournalEntry, error) {
	limit = clampLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.JournalEntry, 0, min(limit, len(m.entries)))
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *MemoryJournal) Ping(context.Context) error { return nil }

func (m *MemoryJournal) Close() error { return nil }
