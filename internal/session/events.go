package session

import (
	"time"

	"github.com/Billy-Davies-2/lottery-draft-ui/internal/draftview"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/pubsub"
)

// ChangeEvent converts a view change into a bus event.
func ChangeEvent(c draftview.Change) pubsub.Event {
	ev := pubsub.Event{
		Type:   string(c.Kind),
		ViewID: c.ViewID,
		At:     time.Now().UTC(),
	}

	payload := map[string]any{}
	if c.Pick != nil {
		payload[pubsub.KeyTeamName] = c.Pick.TeamName
		payload[pubsub.KeyPercentage] = c.Pick.PercentageAtSelection
	}
	if c.TeamName != "" {
		payload[pubsub.KeyTeamName] = c.TeamName
	}
	if c.PreviousName != "" {
		payload[pubsub.KeyPreviousName] = c.PreviousName
	}
	if c.PickNumber > 0 {
		payload[pubsub.KeyPickNumber] = c.PickNumber
	}
	if c.PoolSize > 0 {
		payload[pubsub.KeyPoolSize] = c.PoolSize
	}
	if c.Error != "" {
		payload[pubsub.KeyError] = c.Error
	}
	if len(payload) > 0 {
		ev.Payload = payload
	}
	return ev
}
