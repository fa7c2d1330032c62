package services

import (
	"context"
	"sync"
)

// MemoryPublisher records published events for assertions in tests
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryPublisher creates an empty recording publisher
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish records the event
func (p *MemoryPublisher) Publish(_ context.Context, evt Event) error {
	p.mu.Lock()
	p.events = append(p.events, evt)
	p.mu.Unlock()
	return nil
}

// Events returns a copy of everything published so far
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	events := make([]Event, len(p.events))
	copy(events, p.events)
	return events
}

// OfType returns the recorded events of one type
func (p *MemoryPublisher) OfType(t EventType) []Event {
	var matched []Event
	for _, evt := range p.Events() {
		if evt.Type == t {
			matched = append(matched, evt)
		}
	}
	return matched
}
