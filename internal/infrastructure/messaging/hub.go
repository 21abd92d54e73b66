// Package messaging connects the background, panel and content contexts.
// Delivery is at most once and fire-and-forget, ordered per endpoint.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"zenix/internal/application/port/output"
	"zenix/internal/domain/entity"
)

const defaultInboxSize = 64

var (
	ErrHubClosed         = errors.New("message hub closed")
	ErrAlreadySubscribed = errors.New("endpoint already has a listener")
)

var _ output.MessageBus = (*Hub)(nil)

type Hub struct {
	mu        sync.RWMutex
	boxes     map[output.Endpoint]*mailbox
	closed    bool
	wg        sync.WaitGroup
	inboxSize int
	logger    output.LoggerPort
}

func NewHub(logger output.LoggerPort) *Hub {
	return &Hub{
		boxes:     make(map[output.Endpoint]*mailbox),
		inboxSize: defaultInboxSize,
		logger:    logger,
	}
}

// Send queues env for the listener on to. It returns output.ErrNoReceiver
// when nobody listens and blocks only while the listener's inbox is full.
func (h *Hub) Send(ctx context.Context, to output.Endpoint, env entity.Envelope) error {
	h.mu.RLock()
	box := h.boxes[to]
	h.mu.RUnlock()

	if box == nil {
		return output.ErrNoReceiver
	}
	return box.put(ctx, env)
}

// Subscribe attaches handler to an endpoint. Envelopes are handed to it one
// at a time on a dedicated goroutine. Envelopes still queued when
// unsubscribe is called are dropped.
func (h *Hub) Subscribe(to output.Endpoint, handler output.Handler) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if _, ok := h.boxes[to]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadySubscribed, to)
	}

	box := newMailbox(to, handler, h.inboxSize, h.logger)
	h.boxes[to] = box
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		box.run()
	}()
	h.logger.Debug("Endpoint attached", "endpoint", to)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			if h.boxes[to] == box {
				delete(h.boxes, to)
			}
			h.mu.Unlock()
			box.stop()
			h.logger.Debug("Endpoint detached", "endpoint", to)
		})
	}, nil
}

// Listening reports whether an endpoint currently has a listener.
func (h *Hub) Listening(to output.Endpoint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.boxes[to]
	return ok
}

// Close detaches every endpoint and waits for running handlers to return.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	boxes := h.boxes
	h.boxes = make(map[output.Endpoint]*mailbox)
	h.mu.Unlock()

	for _, box := range boxes {
		box.stop()
	}
	h.wg.Wait()
}

type mailbox struct {
	endpoint output.Endpoint
	handler  output.Handler
	inbox    chan entity.Envelope
	ctx      context.Context
	cancel   context.CancelFunc
	logger   output.LoggerPort
}

func newMailbox(endpoint output.Endpoint, handler output.Handler, size int, logger output.LoggerPort) *mailbox {
	ctx, cancel := context.WithCancel(context.Background())
	return &mailbox{
		endpoint: endpoint,
		handler:  handler,
		inbox:    make(chan entity.Envelope, size),
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
	}
}

func (m *mailbox) put(ctx context.Context, env entity.Envelope) error {
	if m.ctx.Err() != nil {
		return output.ErrNoReceiver
	}
	select {
	case m.inbox <- env:
		return nil
	case <-m.ctx.Done():
		return output.ErrNoReceiver
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *mailbox) run() {
	for {
		select {
		case <-m.ctx.Done():
			return
		case env := <-m.inbox:
			m.deliver(env)
		}
	}
}

func (m *mailbox) deliver(env entity.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Message handler panicked", "endpoint", m.endpoint, "action", env.Action, "panic", r)
		}
	}()
	m.handler(m.ctx, env)
}

func (m *mailbox) stop() {
	m.cancel()
}
