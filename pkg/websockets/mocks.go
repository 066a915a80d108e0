package websockets

import (
	"context"
	"sync"
)

// NoOpPublisher is a publisher that drops every message.
type NoOpPublisher struct{}

// Publish does nothing.
func (p *NoOpPublisher) Publish(ctx context.Context, message Message) error {
	return nil
}

// Recorder keeps every published message in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Publish records message.
func (r *Recorder) Publish(ctx context.Context, message Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return nil
}

// Types returns the types of the recorded messages in publish order.
func (r *Recorder) Types() []MessageType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]MessageType, len(r.messages))
	for i, m := range r.messages {
		types[i] = m.Type
	}
	return types
}
