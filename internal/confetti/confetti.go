// Package confetti generates the particles for the full-viewport celebration shown
// after a pick. It is purely cosmetic.
package confetti

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Palette is the default particle palette.
var Palette = []string{"#ff6b6b", "#4ecdc4", "#45b7d1", "#96ceb4", "#feca57", "#ff9ff3", "#54a0ff"}

const (
	DefaultPieces   = 200
	DefaultLifetime = 5 * time.Second

	minSize     = 8.0
	sizeSpread  = 6.0
	minFall     = 1500 * time.Millisecond
	fallSpread  = 4000 * time.Millisecond
	maxRotation = 360.0
)

// Viewport is the ambient window size particles are laid out against.
type Viewport struct {
	Width  int
	Height int
}

// DefaultViewport is used until the browser reports its size.
var DefaultViewport = Viewport{Width: 1280, Height: 800}

type Particle struct {
	Color    string
	Size     float64 // px
	Left     float64 // px from the left edge
	Fall     time.Duration
	Rotation float64 // degrees
	Round    bool
}

type Config struct {
	Pieces   int
	Lifetime time.Duration
	Colors   []string
}

// Effect holds the particles for one view. A show request replaces any running
// burst and restarts its expiry timer.
type Effect struct {
	mu        sync.Mutex
	cfg       Config
	rng       *rand.Rand
	show      bool
	viewport  Viewport
	particles []Particle
	timer     *time.Timer
	gen       uint64
	onExpire  func()
}

// New creates an effect. onExpire, if set, is called after particles are removed by the timer.
func New(cfg Config, rng *rand.Rand, onExpire func()) *Effect {
	if cfg.Pieces <= 0 {
		cfg.Pieces = DefaultPieces
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = DefaultLifetime
	}
	if len(cfg.Colors) == 0 {
		cfg.Colors = Palette
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Effect{cfg: cfg, rng: rng, viewport: DefaultViewport, onExpire: onExpire}
}

// Set drives the effect from the show flag.
func (e *Effect) Set(show bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopTimerLocked()
	e.show = show
	if !show {
		e.particles = nil
		return
	}

	e.particles = e.generateLocked()
	e.gen++
	gen := e.gen
	e.timer = time.AfterFunc(e.cfg.Lifetime, func() { e.expire(gen) })
}

// Resize updates the viewport used for the next burst.
func (e *Effect) Resize(vp Viewport) {
	if vp.Width <= 0 || vp.Height <= 0 {
		return
	}
	e.mu.Lock()
	e.viewport = vp
	e.mu.Unlock()
}

func (e *Effect) Viewport() Viewport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewport
}

// Showing reports the show flag, which outlives the particles themselves.
func (e *Effect) Showing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.show
}

// Particles returns a copy of the live particles; nil once expired.
func (e *Effect) Particles() []Particle {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.particles) == 0 {
		return nil
	}
	out := make([]Particle, len(e.particles))
	copy(out, e.particles)
	return out
}

// Stop cancels a pending expiry and clears particles. Unmount hook.
func (e *Effect) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopTimerLocked()
	e.show = false
	e.particles = nil
}

func (e *Effect) expire(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || e.particles == nil {
		e.mu.Unlock()
		return
	}
	e.particles = nil
	e.timer = nil
	cb := e.onExpire
	e.mu.Unlock()

	if cb != nil {
		cb()
	}
}

func (e *Effect) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	// invalidate a timer that already fired but has not taken the lock yet
	e.gen++
}

func (e *Effect) generateLocked() []Particle {
	out := make([]Particle, e.cfg.Pieces)
	width := float64(e.viewport.Width)
	for i := range out {
		out[i] = Particle{
			Color:    e.cfg.Colors[e.rng.IntN(len(e.cfg.Colors))],
			Size:     minSize + e.rng.Float64()*sizeSpread,
			Left:     e.rng.Float64() * width,
			Fall:     minFall + time.Duration(e.rng.Int64N(int64(fallSpread))),
			Rotation: e.rng.Float64() * maxRotation,
			Round:    e.rng.Float64() > 0.5,
		}
	}
	return out
}
