package input

import (
	"context"

	"zenix/internal/domain/entity"
)

// StreamHandle tracks a relay run started with StreamRelay.Start.
type StreamHandle interface {
	ID() string
	Done() <-chan struct{}
	// Outcome is only meaningful after Done is closed.
	Outcome() entity.StreamOutcome
}

type StreamRelay interface {
	Start(ctx context.Context, req entity.ChatRequest) StreamHandle
}
