// Package visibility fans a single visibility detection primitive out to many
// independently registered elements.
package visibility

import (
	"sync"
)

// DefaultThreshold is the visible fraction at which an element counts as
// visible.
const DefaultThreshold = 0.1

// Entry is one visibility observation for an element.
type Entry struct {
	Element      string  `json:"element"`
	Intersecting bool    `json:"intersecting"`
	Ratio        float64 `json:"ratio"`
}

// Primitive is the platform mechanism that actually watches elements.
type Primitive interface {
	Observe(element string)
	Unobserve(element string)
	Disconnect()
}

// PrimitiveFactory builds a Primitive that reports observations to dispatch.
type PrimitiveFactory func(dispatch func([]Entry)) Primitive

// Callback receives the derived visible flag for one element.
type Callback func(visible bool)

// Multiplexer registers many elements on one shared Primitive. It is safe for
// concurrent use.
type Multiplexer struct {
	mu        sync.RWMutex
	factory   PrimitiveFactory
	primitive Primitive
	callbacks map[string]Callback
	threshold float64
}

// Option configures a Multiplexer.
type Option func(*Multiplexer)

// WithThreshold sets the visible fraction that counts as visible.
func WithThreshold(t float64) Option {
	return func(m *Multiplexer) { m.threshold = t }
}

// New creates a Multiplexer. The primitive is created on the first Observe.
func New(factory PrimitiveFactory, opts ...Option) *Multiplexer {
	m := &Multiplexer{
		factory:   factory,
		callbacks: make(map[string]Callback),
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Observe registers cb for element, replacing any earlier callback.
func (m *Multiplexer) Observe(element string, cb Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.primitive == nil {
		m.primitive = m.factory(m.dispatch)
	}

	if _, exists := m.callbacks[element]; exists {
		m.callbacks[element] = cb
		return
	}
	m.callbacks[element] = cb
	m.primitive.Observe(element)
}

// Unobserve removes element. Unknown elements are ignored.
func (m *Multiplexer) Unobserve(element string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.callbacks[element]; !exists {
		return
	}
	delete(m.callbacks, element)
	if m.primitive != nil {
		m.primitive.Unobserve(element)
	}
}

// Disconnect drops every registration and stops the primitive. A later
// Observe starts a fresh primitive.
func (m *Multiplexer) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.primitive != nil {
		m.primitive.Disconnect()
		m.primitive = nil
	}
	m.callbacks = make(map[string]Callback)
}

// ObservedCount returns the number of registered elements.
func (m *Multiplexer) ObservedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.callbacks)
}

// Threshold returns the configured visibility threshold.
func (m *Multiplexer) Threshold() float64 {
	return m.threshold
}

func (m *Multiplexer) dispatch(entries []Entry) {
	type delivery struct {
		cb      Callback
		visible bool
	}

	m.mu.RLock()
	deliveries := make([]delivery, 0, len(entries))
	for _, e := range entries {
		cb, ok := m.callbacks[e.Element]
		if !ok {
			continue
		}
		deliveries = append(deliveries, delivery{cb: cb, visible: m.visible(e)})
	}
	m.mu.RUnlock()

	for _, d := range deliveries {
		d.cb(d.visible)
	}
}

func (m *Multiplexer) visible(e Entry) bool {
	return e.Intersecting && e.Ratio >= m.threshold
}
