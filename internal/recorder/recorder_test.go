package recorder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Billy-Davies-2/lottery-draft-ui/internal/dal"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/mocks"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/models"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/pubsub"
)

type failingAnalytics struct{}

func (failingAnalytics) RecordPick(context.Context, models.PickRecord) error {
	return errors.New("clickhouse unavailable")
}

func TestHandlePickWritesJournalAndAnalytics(t *testing.T) {
	ctx := context.Background()
	journal := dal.NewMemoryJournal()
	analytics := mocks.NewMockClickHouseClient()
	r := New(journal, analytics)

	at := time.Date(2024, 9, 1, 20, 0, 0, 0, time.UTC)
	// numbers as they arrive after a NATS round trip
	err := r.Handle(ctx, pubsub.Event{
		Type:   "draft:pick",
		ViewID: "v1",
		At:     at,
		Payload: map[string]any{
			pubsub.KeyTeamName:   "Alpha",
			pubsub.KeyPickNumber: 2.0,
			pubsub.KeyPercentage: 37.5,
			pubsub.KeyPoolSize:   12.0,
		},
	})
	require.NoError(t, err)

	entries, err := journal.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.JournalPick, entries[0].Kind)
	assert.Equal(t, "Alpha", entries[0].TeamName)
	assert.Equal(t, 2, entries[0].PickNumber)
	assert.Equal(t, 37.5, entries[0].Percentage)
	assert.Equal(t, at, entries[0].CreatedAt)

	picks := analytics.Picks()
	require.Len(t, picks, 1)
	assert.Equal(t, models.PickRecord{ViewID: "v1", PickNumber: 2, TeamName: "Alpha", Percentage: 37.5, PoolSize: 12, DrawnAt: at}, picks[0])
}

func TestHandleRenameAndReset(t *testing.T) {
	ctx := context.Background()
	journal := dal.NewMemoryJournal()
	analytics := mocks.NewMockClickHouseClient()
	r := New(journal, analytics)

	require.NoError(t, r.Handle(ctx, pubsub.Event{Type: "draft:rename", Payload: map[string]any{
		pubsub.KeyTeamName: "Aces", pubsub.KeyPreviousName: "Alpha",
	}}))
	require.NoError(t, r.Handle(ctx, pubsub.Event{Type: "draft:reset"}))

	entries, err := journal.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.JournalReset, entries[0].Kind)
	assert.Equal(t, "Alpha", entries[1].PreviousName)
	assert.Empty(t, analytics.Picks())
}

func TestHandleIgnoresViewEvents(t *testing.T) {
	ctx := context.Background()
	journal := dal.NewMemoryJournal()
	r := New(journal, nil)

	for _, typ := range []string{"view:ui", "view:state", "view:error", ""} {
		require.NoError(t, r.Handle(ctx, pubsub.Event{Type: typ}))
	}
	entries, err := journal.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHandleReportsAnalyticsFailure(t *testing.T) {
	journal := dal.NewMemoryJournal()
	r := New(journal, failingAnalytics{})

	err := r.Handle(context.Background(), pubsub.Event{Type: "draft:pick", Payload: map[string]any{pubsub.KeyTeamName: "A"}})
	assert.Error(t, err)

	entries, _ := journal.Recent(context.Background(), 10)
	assert.Len(t, entries, 1, "journal write happens before analytics")
}

func TestStartOnLocalBus(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ps := pubsub.New()
	journal := dal.NewMemoryJournal()
	r := New(journal, nil)

	stop, err := r.Start(ctx, ps, nil)
	require.NoError(t, err)

	ps.Publish(pubsub.Event{Type: "draft:reset", ViewID: "v1"})
	require.Eventually(t, func() bool {
		entries, _ := journal.Recent(ctx, 10)
		return len(entries) == 1
	}, time.Second, 5*time.Millisecond)

	stop()
	assert.Equal(t, 0, ps.SubscriberCount())
}

func TestStartOnEmbeddedNATS(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	up, err := pubsub.NewEmbeddedNATSPubSub(pubsub.DefaultEmbeddedNATSOptions())
	require.NoError(t, err)
	defer up.Close()
	ps := pubsub.NewWithUpstream(up)

	journal := dal.NewMemoryJournal()
	stop, err := New(journal, nil).Start(ctx, ps, up)
	require.NoError(t, err)
	defer stop()

	ps.Publish(pubsub.Event{Type: "draft:pick", ViewID: "v1", Payload: map[string]any{
		pubsub.KeyTeamName: "Alpha", pubsub.KeyPickNumber: 1,
	}})
	require.Eventually(t, func() bool {
		entries, _ := journal.Recent(ctx, 10)
		return len(entries) == 1 && entries[0].PickNumber == 1
	}, 3*time.Second, 10*time.Millisecond)
}
