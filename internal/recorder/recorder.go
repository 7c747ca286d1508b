// Package recorder turns draft events into journal entries and pick analytics.
package recorder

import (
	"context"
	"log/slog"

	"github.com/Billy-Davies-2/lottery-draft-ui/internal/dal"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/draftview"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/logger"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/models"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/pubsub"
)

// ConsumerGroup is the durable consumer name shared by all instances.
const ConsumerGroup = "draft-recorder"

// Analytics receives every drawn pick.
type Analytics interface {
	RecordPick(ctx context.Context, p models.PickRecord) error
}

type Recorder struct {
	journal   dal.Journal
	analytics Analytics
	log       *slog.Logger
}

// New accepts a nil analytics sink.
func New(journal dal.Journal, analytics Analytics) *Recorder {
	return &Recorder{
		journal:   journal,
		analytics: analytics,
		log:       logger.With("component", "recorder"),
	}
}

// Handle records one event. View-only events are ignored.
func (r *Recorder) Handle(ctx context.Context, ev pubsub.Event) error {
	kind, ok := journalKind(ev.Type)
	if !ok {
		return nil
	}

	entry := &models.JournalEntry{
		ViewID:       ev.ViewID,
		Kind:         kind,
		TeamName:     ev.Text(pubsub.KeyTeamName),
		PreviousName: ev.Text(pubsub.KeyPreviousName),
		PickNumber:   ev.Int(pubsub.KeyPickNumber),
		Percentage:   ev.Float(pubsub.KeyPercentage),
		CreatedAt:    ev.At,
	}
	if err := r.journal.Record(ctx, entry); err != nil {
		r.log.Error("Failed to record journal entry", "error", err, "kind", kind)
		return err
	}

	if kind == models.JournalPick && r.analytics != nil {
		err := r.analytics.RecordPick(ctx, models.PickRecord{
			ViewID:     ev.ViewID,
			PickNumber: entry.PickNumber,
			TeamName:   entry.TeamName,
			Percentage: entry.Percentage,
			PoolSize:   ev.Int(pubsub.KeyPoolSize),
			DrawnAt:    entry.CreatedAt,
		})
		if err != nil {
			r.log.Error("Failed to record pick analytics", "error", err, "pick_number", entry.PickNumber)
			return err
		}
	}
	r.log.Debug("Recorded draft event", "kind", kind, "view_id", ev.ViewID)
	return nil
}

// Run consumes a local subscription until ctx is done or ch is closed.
func (r *Recorder) Run(ctx context.Context, ch <-chan pubsub.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			_ = r.Handle(ctx, ev)
		}
	}
}

// Start attaches the recorder to the event bus. A durable upstream gets a consumer
// group so that each event is recorded once across instances; otherwise the recorder
// listens on a local subscription.
func (r *Recorder) Start(ctx context.Context, ps *pubsub.PubSub, durable pubsub.Durable) (stop func(), err error) {
	if durable != nil {
		stop, err := durable.SubscribeDurable(ConsumerGroup, func(ev pubsub.Event) {
			_ = r.Handle(ctx, ev)
		})
		if err != nil {
			return nil, err
		}
		r.log.Info("Recorder attached to durable consumer group", "group", ConsumerGroup)
		return stop, nil
	}

	ch := ps.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx, ch)
	}()
	r.log.Info("Recorder attached to local event bus")
	return func() {
		ps.Unsubscribe(ch)
		<-done
	}, nil
}

func journalKind(eventType string) (models.JournalKind, bool) {
	switch draftview.ChangeKind(eventType) {
	case draftview.ChangePick:
		return models.JournalPick, true
	case draftview.ChangeRename:
		return models.JournalRename, true
	case draftview.ChangeReset:
		return models.JournalReset, true
	default:
		return "", false
	}
}
