package output

import (
	"context"

	"zenix/internal/domain/entity"
)

// ToolPort is a tool the model may call. Execute runs in the request's
// goroutine and returns the text handed back to the model.
type ToolPort interface {
	Name() entity.ToolName
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, arguments string) (string, error)
}

type ToolRegistry interface {
	Register(tool ToolPort)
	Get(name entity.ToolName) (ToolPort, bool)
	All() []ToolPort
	Definitions() []entity.ToolDefinition
}
