package output

import (
	"context"

	"zenix/internal/domain/entity"
)

// FrameStream yields UI message stream frames until io.EOF.
type FrameStream interface {
	Recv() (entity.Frame, error)
	Close() error
}

// FrameSource opens a frame stream for a chat request, either against the
// proxy over HTTP or in process.
type FrameSource interface {
	Stream(ctx context.Context, req entity.ChatRequest) (FrameStream, error)
}

// EventStream yields normalized stream events until io.EOF.
type EventStream interface {
	Recv() (entity.StreamEvent, error)
	Close() error
}

type ModelGateway interface {
	Stream(ctx context.Context, req entity.ChatRequest) (EventStream, error)
}

type PromptBuilder interface {
	BuildMessages(userMessage string, page entity.PageContent, history []entity.ConversationTurn) ([]entity.Message, error)
}
