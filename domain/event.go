package domain

import "sync"

// EventFeed is an ordered, append-only record of state transitions. Each
// component emits one event per committed transition; integrators and tests
// read them back in order.
type EventFeed struct {
	mu     sync.Mutex
	events []interface{}
}

func NewEventFeed() *EventFeed {
	return &EventFeed{}
}

func (f *EventFeed) Emit(e interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

// List returns a snapshot of all emitted events in emission order.
func (f *EventFeed) List() []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]interface{}, len(f.events))
	copy(out, f.events)
	return out
}

func (f *EventFeed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}
