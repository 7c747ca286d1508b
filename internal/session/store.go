// Package session keeps one draft view per browser session. Views are mounted on first
// use and unmounted (closed) once they have been idle for the configured timeout.
package session

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Billy-Davies-2/lottery-draft-ui/internal/confetti"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/draftview"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/logger"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/lottery"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/pubsub"
)

const DefaultIdleTimeout = 30 * time.Minute

// Publisher is where draft events go for other instances and the recorder.
type Publisher interface {
	Publish(pubsub.Event)
}

type Options struct {
	API         lottery.API
	Delay       draftview.DelayRange
	Confetti    confetti.Config
	IdleTimeout time.Duration
	// Shared receives draft:* events. Optional.
	Shared Publisher
	// Seed fixes the per-view random source; zero means random.
	Seed uint64
}

type entry struct {
	view     *draftview.View
	lastSeen time.Time
}

type Store struct {
	opts  Options
	local *pubsub.PubSub
	log   *slog.Logger
	now   func() time.Time

	mu     sync.Mutex
	views  map[string]*entry
	closed bool
}

func NewStore(opts Options) *Store {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	return &Store{
		opts:  opts,
		local: pubsub.New(),
		log:   logger.With("component", "session"),
		now:   time.Now,
		views: make(map[string]*entry),
	}
}

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id looks like one NewID produced.
func ValidID(id string) bool {
	return uuid.Validate(id) == nil
}

// Get returns a mounted view and marks it as seen.
func (s *Store) Get(id string) (*draftview.View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.views[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = s.now()
	return e.view, true
}

// GetOrCreate returns the view for id, mounting it (and running its initial load) when
// it does not exist yet. A failed initial load still yields a view showing the error.
func (s *Store) GetOrCreate(ctx context.Context, id string) (*draftview.View, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, draftview.ErrClosed
	}
	if e, ok := s.views[id]; ok {
		e.lastSeen = s.now()
		s.mu.Unlock()
		return e.view, nil
	}
	v := s.newView(id)
	s.views[id] = &entry{view: v, lastSeen: s.now()}
	n := len(s.views)
	s.mu.Unlock()

	s.log.Info("View mounted", "view_id", id, "views", n)
	if err := v.Load(ctx); err != nil && !errors.Is(err, draftview.ErrClosed) {
		s.log.Warn("Initial load failed", "view_id", id, "error", err)
	}
	return v, nil
}

func (s *Store) newView(id string) *draftview.View {
	var rng *rand.Rand
	if s.opts.Seed != 0 {
		rng = rand.New(rand.NewPCG(s.opts.Seed, uint64(len(s.views))))
	}
	return draftview.New(draftview.Options{
		ID:       id,
		API:      s.opts.API,
		Delay:    s.opts.Delay,
		Rand:     rng,
		Confetti: s.opts.Confetti,
		Notify:   s.notify,
	})
}

func (s *Store) notify(c draftview.Change) {
	ev := ChangeEvent(c)
	s.local.Publish(ev)
	if s.opts.Shared != nil && ev.IsDraft() {
		s.opts.Shared.Publish(ev)
	}
}

// Subscribe returns a channel receiving every change of every local view.
func (s *Store) Subscribe() chan pubsub.Event {
	return s.local.Subscribe()
}

func (s *Store) Unsubscribe(ch chan pubsub.Event) {
	s.local.Unsubscribe(ch)
}

// Remove unmounts one view.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	e, ok := s.views[id]
	delete(s.views, id)
	s.mu.Unlock()
	if ok {
		e.view.Close()
	}
	return ok
}

// Reap unmounts views not seen since now minus the idle timeout and returns how many.
func (s *Store) Reap(now time.Time) int {
	cutoff := now.Add(-s.opts.IdleTimeout)

	s.mu.Lock()
	var idle []*draftview.View
	for id, e := range s.views {
		if e.lastSeen.Before(cutoff) {
			idle = append(idle, e.view)
			delete(s.views, id)
		}
	}
	s.mu.Unlock()

	for _, v := range idle {
		v.Close()
		s.log.Info("View unmounted after idle timeout", "view_id", v.ID())
	}
	return len(idle)
}

// Run reaps idle views until ctx is done.
func (s *Store) Run(ctx context.Context) {
	t := time.NewTicker(max(s.opts.IdleTimeout/4, time.Second))
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.Reap(now)
		}
	}
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.views)
}

// CloseAll unmounts every view; later GetOrCreate calls fail.
func (s *Store) CloseAll() {
	s.mu.Lock()
	s.closed = true
	views := s.views
	s.views = make(map[string]*entry)
	s.mu.Unlock()

	for _, e := range views {
		e.view.Close()
		e.view.Wait()
	}
}
