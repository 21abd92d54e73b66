// Package relay forwards a model response to the panel one event at a time.
package relay

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"

	"zenix/internal/application/port/input"
	"zenix/internal/application/port/output"
	"zenix/internal/domain/entity"
	"zenix/internal/domain/fault"
)

var _ input.StreamRelay = (*Relay)(nil)

type Relay struct {
	gateway output.ModelGateway
	bus     output.MessageBus
	metrics output.RelayMetrics
	logger  output.LoggerPort
	target  output.Endpoint
}

type Option func(*Relay)

func WithMetrics(m output.RelayMetrics) Option {
	return func(r *Relay) { r.metrics = m }
}

// WithTarget changes the endpoint notifications are published to.
func WithTarget(e output.Endpoint) Option {
	return func(r *Relay) { r.target = e }
}

func New(gateway output.ModelGateway, bus output.MessageBus, logger output.LoggerPort, opts ...Option) *Relay {
	r := &Relay{
		gateway: gateway,
		bus:     bus,
		metrics: output.NopRelayMetrics{},
		logger:  logger,
		target:  output.EndpointPanel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle tracks one background run.
type Handle struct {
	id      string
	done    chan struct{}
	outcome entity.StreamOutcome
}

func (h *Handle) ID() string { return h.id }

func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) Outcome() entity.StreamOutcome {
	<-h.done
	return h.outcome
}

// Start runs the stream in its own goroutine and returns at once. The run
// lives as long as ctx. req.StreamID is used as the run id when set.
func (r *Relay) Start(ctx context.Context, req entity.ChatRequest) input.StreamHandle {
	h := &Handle{id: streamID(req), done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.outcome = r.run(ctx, h.id, req)
	}()
	return h
}

// Run streams req to completion on the calling goroutine.
func (r *Relay) Run(ctx context.Context, req entity.ChatRequest) entity.StreamOutcome {
	return r.run(ctx, streamID(req), req)
}

func streamID(req entity.ChatRequest) string {
	if req.StreamID != "" {
		return req.StreamID
	}
	return uuid.NewString()
}

func (r *Relay) run(ctx context.Context, id string, req entity.ChatRequest) entity.StreamOutcome {
	s := &stream{
		relay:   r,
		logger:  r.logger.WithField("stream_id", id),
		started: time.Now(),
		outcome: entity.StreamOutcome{StreamID: id},
	}
	r.metrics.StreamStarted()
	s.logger.Info("Stream started", "message_len", len(req.Message), "history", len(req.History))

	events, err := r.gateway.Stream(ctx, req)
	if err != nil {
		s.fail(ctx, err)
		return s.outcome
	}
	defer events.Close()

	for !s.terminated {
		ev, err := events.Recv()
		if errors.Is(err, io.EOF) {
			s.complete(ctx, false)
			break
		}
		if err != nil {
			s.fail(ctx, err)
			break
		}

		switch ev.Kind {
		case entity.EventDelta:
			s.chunk(ctx, ev.Text)
		case entity.EventToolResult:
			s.outcome.FullText += ev.Text
		case entity.EventToolError:
			s.chunk(ctx, "Error: "+ev.Text)
		case entity.EventComplete:
			s.complete(ctx, ev.Truncated)
		case entity.EventError:
			s.fail(ctx, fault.FromMessage(ev.Message))
		}
	}
	return s.outcome
}

type stream struct {
	relay      *Relay
	logger     output.LoggerPort
	started    time.Time
	outcome    entity.StreamOutcome
	terminated bool
}

func (s *stream) chunk(ctx context.Context, text string) {
	s.outcome.DisplayText += text
	s.outcome.FullText += text
	s.outcome.ChunkCount++
	s.relay.metrics.ChunkPublished()
	s.publish(ctx, entity.StreamChunk(text, s.outcome.DisplayText, s.outcome.FullText))
}

func (s *stream) complete(ctx context.Context, truncated bool) {
	if s.terminated {
		return
	}
	s.terminated = true
	s.outcome.Completed = true
	s.outcome.Truncated = truncated

	result := "complete"
	if truncated {
		result = "truncated"
	}
	s.relay.metrics.StreamFinished(result, time.Since(s.started))
	s.logger.Info("Stream complete", "chunks", s.outcome.ChunkCount, "display_len", len(s.outcome.DisplayText),
		"full_len", len(s.outcome.FullText), "truncated", truncated)

	s.publish(ctx, entity.StreamComplete(s.outcome.DisplayText, s.outcome.FullText, s.outcome.ChunkCount, truncated))
}

func (s *stream) fail(ctx context.Context, err error) {
	if s.terminated {
		return
	}
	s.terminated = true

	f := fault.Classify(err)
	s.outcome.ErrorKind = string(f.Kind)
	s.outcome.Error = f.UserMessage()
	s.relay.metrics.StreamFinished(string(f.Kind), time.Since(s.started))
	s.logger.Error("Stream failed", "kind", f.Kind, "error", err, "chunks", s.outcome.ChunkCount)

	s.publish(ctx, entity.StreamError(s.outcome.Error))
}

// publish never fails the stream; a missing panel is routine.
func (s *stream) publish(ctx context.Context, env entity.Envelope) {
	err := s.relay.bus.Send(ctx, s.relay.target, env.ForStream(s.outcome.StreamID))
	switch {
	case err == nil:
	case errors.Is(err, output.ErrNoReceiver):
		s.logger.Debug("No receiver for stream notification", "action", env.Action)
	default:
		s.logger.Warn("Stream notification dropped", "action", env.Action, "error", err)
	}
}
