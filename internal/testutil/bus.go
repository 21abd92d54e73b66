// Package testutil holds fakes shared by use case tests.
package testutil

import (
	"context"
	"sync"

	"zenix/internal/application/port/output"
	"zenix/internal/domain/entity"
)

type Sent struct {
	To       output.Endpoint
	Envelope entity.Envelope
}

// RecordingBus records every Send. Endpoints listed in Absent report
// output.ErrNoReceiver but are still recorded.
type RecordingBus struct {
	mu       sync.Mutex
	sent     []Sent
	handlers map[output.Endpoint]output.Handler
	Absent   map[output.Endpoint]bool
	// Deliver makes Send call a subscribed handler synchronously.
	Deliver bool
}

func NewRecordingBus() *RecordingBus {
	return &RecordingBus{
		handlers: make(map[output.Endpoint]output.Handler),
		Absent:   make(map[output.Endpoint]bool),
	}
}

func (b *RecordingBus) Send(ctx context.Context, to output.Endpoint, env entity.Envelope) error {
	b.mu.Lock()
	b.sent = append(b.sent, Sent{To: to, Envelope: env})
	absent := b.Absent[to]
	h := b.handlers[to]
	deliver := b.Deliver
	b.mu.Unlock()

	if absent {
		return output.ErrNoReceiver
	}
	if deliver && h != nil {
		h(ctx, env)
	}
	return nil
}

func (b *RecordingBus) Subscribe(to output.Endpoint, h output.Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[to] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, to)
	}, nil
}

func (b *RecordingBus) Sent() []Sent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Sent(nil), b.sent...)
}

// To returns the envelopes sent to one endpoint, in order.
func (b *RecordingBus) To(to output.Endpoint) []entity.Envelope {
	var out []entity.Envelope
	for _, s := range b.Sent() {
		if s.To == to {
			out = append(out, s.Envelope)
		}
	}
	return out
}

// Actions lists the actions sent to one endpoint, in order.
func (b *RecordingBus) Actions(to output.Endpoint) []entity.Action {
	var out []entity.Action
	for _, env := range b.To(to) {
		out = append(out, env.Action)
	}
	return out
}

func (b *RecordingBus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = nil
}
