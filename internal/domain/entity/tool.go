package entity

type ToolName string

const ToolGetCurrentTime ToolName = "get_current_time"

func (t ToolName) String() string { return string(t) }

// ToolCall is a function call requested by the model. Arguments is the raw
// JSON object the model produced.
type ToolCall struct {
	ID        string
	Name      ToolName
	Arguments string
}

// ToolDefinition advertises a tool to the model; Parameters is a JSON schema.
type ToolDefinition struct {
	Name        ToolName
	Description string
	Parameters  map[string]interface{}
}
