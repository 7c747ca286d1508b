package pubsub

import (
	"strings"
	"sync"
	"time"

	"github.com/Billy-Davies-2/lottery-draft-ui/internal/logger"
)

const subscriberBuffer = 16

// Payload keys shared by producers and consumers of draft events.
const (
	KeyTeamName     = "team_name"
	KeyPreviousName = "previous_name"
	KeyPickNumber   = "pick_number"
	KeyPercentage   = "percentage"
	KeyPoolSize     = "pool_size"
	KeyError        = "error"
)

// Event is a view or draft notification. Types prefixed with "draft:" describe
// changes to the authoritative draft; "view:" types only concern one browser session.
type Event struct {
	Type    string         `json:"type"`
	ViewID  string         `json:"view_id,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	At      time.Time      `json:"at"`
}

// IsDraft reports whether the event describes a change to the draft itself.
func (e Event) IsDraft() bool {
	return strings.HasPrefix(e.Type, "draft:")
}

// Int reads a numeric payload value. Numbers decoded from JSON arrive as float64.
func (e Event) Int(key string) int {
	switch n := e.Payload[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func (e Event) Float(key string) float64 {
	switch n := e.Payload[key].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func (e Event) Text(key string) string {
	s, _ := e.Payload[key].(string)
	return s
}

// Upstream is an interface for upstream publishers (e.g., NATS)
type Upstream interface {
	Publish(Event)
	Subscribe() chan Event
	Unsubscribe(chan Event)
}

// Durable is implemented by upstreams that can hand each event to exactly one member
// of a named consumer group. The returned func stops the subscription.
type Durable interface {
	SubscribeDurable(group string, handler func(Event)) (func(), error)
}

// PubSub fans events out to in-process subscribers, optionally bridged through an upstream.
type PubSub struct {
	mu          sync.RWMutex
	subscribers []chan Event
	upstream    Upstream
}

func New() *PubSub {
	return &PubSub{
		subscribers: []chan Event{},
	}
}

// NewWithUpstream creates a PubSub that bridges to an upstream publisher (e.g., NATS)
// When Publish is called, events are sent to the upstream, which broadcasts to all instances.
// Events from the upstream are forwarded to local subscribers.
func NewWithUpstream(upstream Upstream) *PubSub {
	ps := &PubSub{
		subscribers: []chan Event{},
		upstream:    upstream,
	}

	ch := upstream.Subscribe()
	go func() {
		for event := range ch {
			ps.publishLocal(event)
		}
		logger.Debug("PubSub: upstream channel closed")
	}()

	return ps
}

// Subscribe adds a new subscriber and returns a channel for receiving events
func (ps *PubSub) Subscribe() chan Event {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	ps.subscribers = append(ps.subscribers, ch)
	logger.Debug("PubSub: subscriber added", "total_subscribers", len(ps.subscribers))
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown channels are ignored.
func (ps *PubSub) Unsubscribe(ch chan Event) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	for i, sub := range ps.subscribers {
		if sub == ch {
			close(ch)
			ps.subscribers = append(ps.subscribers[:i], ps.subscribers[i+1:]...)
			break
		}
	}
}

// Publish sends an event to all subscribers. With an upstream the event makes a round
// trip through it, so every instance (this one included) sees it exactly once.
func (ps *PubSub) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	if ps.upstream != nil {
		ps.upstream.Publish(event)
		return
	}
	ps.publishLocal(event)
}

// SubscriberCount returns the number of local subscribers.
func (ps *PubSub) SubscriberCount() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subscribers)
}

// publishLocal never blocks: a full subscriber misses the event.
func (ps *PubSub) publishLocal(event Event) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	for _, ch := range ps.subscribers {
		select {
		case ch <- event:
		default:
			logger.Debug("PubSub: subscriber full, dropping event", "type", event.Type, "view_id", event.ViewID)
		}
	}
}
