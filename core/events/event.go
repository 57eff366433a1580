package events

import (
	"sync"

	"wacgbridge/core/types"
)

// Event represents a structured state change emitted by the bridge controller.
type Event interface {
	EventType() string
}

// Renderer is implemented by events that can be flattened into the wire
// representation consumed by relays, indexers and the audit archive.
type Renderer interface {
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// EmitterFunc adapts a plain function to the Emitter interface.
type EmitterFunc func(Event)

// Emit implements the Emitter interface.
func (f EmitterFunc) Emit(evt Event) {
	if f != nil {
		f(evt)
	}
}

// MultiEmitter forwards every event to each configured emitter in order.
type MultiEmitter []Emitter

// Emit implements the Emitter interface.
func (m MultiEmitter) Emit(evt Event) {
	for _, emitter := range m {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}

// Render returns the wire representation of evt, or a bare typed event when
// the value does not implement Renderer.
func Render(evt Event) *types.Event {
	if evt == nil {
		return nil
	}
	if r, ok := evt.(Renderer); ok {
		if rendered := r.Event(); rendered != nil {
			return rendered
		}
	}
	return &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
}

// Log is an append-only in-memory sink. Entries are never removed or
// rewritten; Events returns a copy of the history.
type Log struct {
	mu      sync.RWMutex
	entries []Event
}

// NewLog constructs an empty event log.
func NewLog() *Log {
	return &Log{}
}

// Emit appends the event to the log.
func (l *Log) Emit(evt Event) {
	if l == nil || evt == nil {
		return
	}
	l.mu.Lock()
	l.entries = append(l.entries, evt)
	l.mu.Unlock()
}

// Events returns a snapshot of every recorded event in emission order.
func (l *Log) Events() []Event {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Event(nil), l.entries...)
}

// Len returns the number of recorded events.
func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// OfType returns the recorded events whose type matches eventType.
func (l *Log) OfType(eventType string) []Event {
	all := l.Events()
	out := make([]Event, 0, len(all))
	for _, evt := range all {
		if evt.EventType() == eventType {
			out = append(out, evt)
		}
	}
	return out
}
