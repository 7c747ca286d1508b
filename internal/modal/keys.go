package modal

import "sync"

// KeySource delivers keydown events to listeners. Listen returns a function that
// detaches the listener; calling it more than once is safe.
type KeySource interface {
	Listen(fn func(key string)) (detach func())
}

// KeyBus is a per-view KeySource. Dispatch fans a key out to every listener.
type KeyBus struct {
	mu        sync.Mutex
	next      int
	listeners map[int]func(string)
}

func NewKeyBus() *KeyBus {
	return &KeyBus{listeners: make(map[int]func(string))}
}

func (b *KeyBus) Listen(fn func(key string)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.listeners[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// Dispatch calls listeners outside the bus lock so they may detach themselves.
func (b *KeyBus) Dispatch(key string) {
	b.mu.Lock()
	fns := make([]func(string), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(key)
	}
}

// Len reports the number of attached listeners.
func (b *KeyBus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}
