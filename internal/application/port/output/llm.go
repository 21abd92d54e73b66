package output

import (
	"context"

	"zenix/internal/domain/entity"
)

// LLMPort streams one model turn. Implementations return a *fault.Fault when
// the provider rejects the request before any chunk is produced.
type LLMPort interface {
	StreamChat(ctx context.Context, req ChatRequest) (ChunkStream, error)
}

type ChatRequest struct {
	Messages    []entity.Message
	Tools       []entity.ToolDefinition
	Temperature float32
}

// StreamChunk is one piece of a model turn. Tool calls are only reported
// once complete, never as partial argument fragments.
type StreamChunk struct {
	Text         string
	ToolCalls    []entity.ToolCall
	FinishReason string
}

// ChunkStream yields chunks until io.EOF.
type ChunkStream interface {
	Recv() (StreamChunk, error)
	Close() error
}

// LLMFactory builds a provider bound to a caller supplied API key.
type LLMFactory interface {
	New(ctx context.Context, apiKey string) (LLMPort, error)
	Model() string
}
