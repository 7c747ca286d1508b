// Package modal models an overlay dialog: rendered only while visible, dismissed by
// the backdrop, the close control, or the Escape key.
package modal

import "sync"

// Target is the part of a modal a click landed on.
type Target string

const (
	TargetBackdrop Target = "backdrop"
	TargetClose    Target = "close"
	TargetContent  Target = "content"
)

const KeyEscape = "Escape"

// Modal is content-agnostic. onClose is the caller's close callback; the modal never
// hides itself, the caller decides (usually by calling Hide from onClose).
type Modal struct {
	mu      sync.Mutex
	name    string
	visible bool
	keys    KeySource
	detach  func()
	onClose func()
}

func New(name string, keys KeySource, onClose func()) *Modal {
	return &Modal{name: name, keys: keys, onClose: onClose}
}

func (m *Modal) Name() string {
	return m.name
}

func (m *Modal) Visible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible
}

// Show makes the modal visible and attaches the Escape listener.
func (m *Modal) Show() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.visible {
		return
	}
	m.visible = true
	if m.keys != nil {
		m.detach = m.keys.Listen(m.handleKey)
	}
}

// Hide makes the modal invisible and detaches the Escape listener.
func (m *Modal) Hide() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visible = false
	m.detachLocked()
}

// Close is the unmount hook: it hides without invoking the close callback.
func (m *Modal) Close() {
	m.Hide()
}

// Click routes a click on the modal. Content clicks never reach the backdrop handler.
// It reports whether the close callback ran.
func (m *Modal) Click(target Target) bool {
	if !m.Visible() {
		return false
	}
	switch target {
	case TargetBackdrop, TargetClose:
		m.fireClose()
		return true
	default:
		return false
	}
}

func (m *Modal) handleKey(key string) {
	if key != KeyEscape || !m.Visible() {
		return
	}
	m.fireClose()
}

func (m *Modal) fireClose() {
	if m.onClose != nil {
		m.onClose()
	}
}

func (m *Modal) detachLocked() {
	if m.detach != nil {
		m.detach()
		m.detach = nil
	}
}
