package pubsub

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Billy-Davies-2/lottery-draft-ui/internal/logger"
)

const (
	DefaultSubject    = "lottery.draft.events"
	DefaultStreamName = "LOTTERY_DRAFT_EVENTS"
)

// StreamOptions configures the JetStream stream backing the event bus.
type StreamOptions struct {
	Subject    string
	StreamName string
	Storage    nats.StorageType
	MaxAge     time.Duration
}

func (o StreamOptions) withDefaults() StreamOptions {
	if o.Subject == "" {
		o.Subject = DefaultSubject
	}
	if o.StreamName == "" {
		o.StreamName = DefaultStreamName
	}
	return o
}

// NATSPubSub implements Upstream and Durable on top of NATS JetStream.
type NATSPubSub struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	subject string
	fanout  *nats.Subscription

	mu          sync.RWMutex
	subscribers []chan Event
	closed      bool
}

// NewNATSPubSub connects to an external NATS server.
func NewNATSPubSub(natsURL string, opts StreamOptions) (*NATSPubSub, error) {
	nc, err := nats.Connect(natsURL, nats.Name("lottery-draft-ui"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	opts = opts.withDefaults()
	if opts.Storage == 0 {
		opts.Storage = nats.FileStorage
	}
	p, err := newJetStreamBus(nc, opts)
	if err != nil {
		nc.Close()
		return nil, err
	}
	logger.Info("Connected to NATS", "url", nc.ConnectedUrl(), "subject", opts.Subject)
	return p, nil
}

func newJetStreamBus(nc *nats.Conn, opts StreamOptions) (*NATSPubSub, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if _, err := js.StreamInfo(opts.StreamName); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     opts.StreamName,
			Subjects: []string{opts.Subject},
			Storage:  opts.Storage,
			MaxAge:   opts.MaxAge,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create stream %s: %w", opts.StreamName, err)
		}
		logger.Info("JetStream stream created", "stream", opts.StreamName, "subject", opts.Subject)
	}

	p := &NATSPubSub{
		nc:          nc,
		js:          js,
		subject:     opts.Subject,
		subscribers: make([]chan Event, 0),
	}

	// Every instance sees every new event; consumer groups are handled by SubscribeDurable.
	p.fanout, err = js.Subscribe(opts.Subject, p.broadcast, nats.DeliverNew(), nats.AckNone())
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", opts.Subject, err)
	}
	return p, nil
}

func (p *NATSPubSub) broadcast(msg *nats.Msg) {
	var event Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.Error("Failed to unmarshal event from JetStream", "error", err)
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, sub := range p.subscribers {
		select {
		case sub <- event:
		default:
			logger.Warn("NATS: skipping slow subscriber", "event_type", event.Type)
		}
	}
}

// Publish publishes an event to the JetStream subject.
func (p *NATSPubSub) Publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return
	}
	if _, err := p.js.Publish(p.subject, data); err != nil {
		logger.Error("Failed to publish to NATS", "error", err, "subject", p.subject, "event_type", event.Type)
		return
	}
	logger.Debug("Published event to NATS", "event_type", event.Type, "subject", p.subject)
}

func (p *NATSPubSub) Subscribe() chan Event {
	ch := make(chan Event, 100)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		close(ch)
		return ch
	}
	p.subscribers = append(p.subscribers, ch)
	return ch
}

func (p *NATSPubSub) Unsubscribe(ch chan Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, sub := range p.subscribers {
		if sub == ch {
			p.subscribers = append(p.subscribers[:i], p.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// SubscribeDurable creates a durable queue subscription: across all instances sharing
// group, each event is handled once. Events are acked after handler returns.
func (p *NATSPubSub) SubscribeDurable(group string, handler func(Event)) (func(), error) {
	sub, err := p.js.QueueSubscribe(p.subject, group, func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logger.Error("Failed to unmarshal event", "error", err, "group", group)
			_ = msg.Term()
			return
		}
		handler(event)
		_ = msg.Ack()
	}, nats.Durable(group), nats.ManualAck(), nats.DeliverNew())
	if err != nil {
		return nil, fmt.Errorf("failed to create durable subscription %s: %w", group, err)
	}
	return func() {
		if err := sub.Drain(); err != nil {
			logger.Warn("Failed to drain durable subscription", "error", err, "group", group)
		}
	}, nil
}

func (p *NATSPubSub) SubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscribers)
}

// Connected reports whether the NATS connection is usable.
func (p *NATSPubSub) Connected() bool {
	return p.nc != nil && p.nc.IsConnected()
}

// Close closes local subscriber channels and the NATS connection.
func (p *NATSPubSub) Close() {
	if p.fanout != nil {
		_ = p.fanout.Unsubscribe()
	}

	p.mu.Lock()
	for _, sub := range p.subscribers {
		close(sub)
	}
	p.subscribers = nil
	p.closed = true
	p.mu.Unlock()

	if p.nc != nil {
		p.nc.Close()
	}
}
