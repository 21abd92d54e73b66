package input

import (
	"context"

	"zenix/internal/application/port/output"
	"zenix/internal/domain/entity"
)

// ChatStreamer answers a chat request with a UI message stream.
type ChatStreamer interface {
	Stream(ctx context.Context, req entity.ChatRequest) (output.FrameStream, error)
	Model() string
}
