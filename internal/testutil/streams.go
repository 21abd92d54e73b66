package testutil

import (
	"context"
	"io"
	"sync"

	"zenix/internal/application/port/output"
	"zenix/internal/domain/entity"
)

// Step is one scripted Recv result.
type Step struct {
	Event entity.StreamEvent
	Err   error
}

// ScriptedEvents replays steps, then io.EOF.
type ScriptedEvents struct {
	mu     sync.Mutex
	steps  []Step
	Closed bool
}

func NewScriptedEvents(steps ...Step) *ScriptedEvents {
	return &ScriptedEvents{steps: steps}
}

func Events(events ...entity.StreamEvent) *ScriptedEvents {
	steps := make([]Step, 0, len(events))
	for _, ev := range events {
		steps = append(steps, Step{Event: ev})
	}
	return NewScriptedEvents(steps...)
}

func (s *ScriptedEvents) Recv() (entity.StreamEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.steps) == 0 {
		return entity.StreamEvent{}, io.EOF
	}
	st := s.steps[0]
	s.steps = s.steps[1:]
	return st.Event, st.Err
}

func (s *ScriptedEvents) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// StubGateway returns Stream or Err and records requests.
type StubGateway struct {
	mu       sync.Mutex
	Events   output.EventStream
	Err      error
	Requests []entity.ChatRequest
}

func (g *StubGateway) Stream(_ context.Context, req entity.ChatRequest) (output.EventStream, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Requests = append(g.Requests, req)
	if g.Err != nil {
		return nil, g.Err
	}
	return g.Events, nil
}

func (g *StubGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Requests)
}
