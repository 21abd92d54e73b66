package entity

import "encoding/json"

// FrameType names a UI message stream frame as sent over SSE.
type FrameType string

const (
	FrameStart               FrameType = "start"
	FrameStartStep           FrameType = "start-step"
	FrameTextStart           FrameType = "text-start"
	FrameTextDelta           FrameType = "text-delta"
	FrameTextEnd             FrameType = "text-end"
	FrameToolInputAvailable  FrameType = "tool-input-available"
	FrameToolOutputAvailable FrameType = "tool-output-available"
	FrameToolOutputError     FrameType = "tool-output-error"
	FrameFinishStep          FrameType = "finish-step"
	FrameFinish              FrameType = "finish"
	FrameError               FrameType = "error"
)

const (
	FinishReasonStop      = "stop"
	FinishReasonStepLimit = "step-limit"
)

// DoneSentinel terminates an SSE frame stream.
const DoneSentinel = "[DONE]"

type Frame struct {
	Type         FrameType `json:"type"`
	ID           string    `json:"id,omitempty"`
	Delta        string    `json:"delta,omitempty"`
	ToolCallID   string    `json:"toolCallId,omitempty"`
	ToolName     string    `json:"toolName,omitempty"`
	Input        any       `json:"input,omitempty"`
	Output       any       `json:"output,omitempty"`
	ErrorText    string    `json:"errorText,omitempty"`
	Error        string    `json:"error,omitempty"`
	FinishReason string    `json:"finishReason,omitempty"`
}

// ErrorMessage returns the error carried by an error frame. Older proxies
// put it under "error" instead of "errorText".
func (f Frame) ErrorMessage() string {
	switch {
	case f.ErrorText != "":
		return f.ErrorText
	case f.Error != "":
		return f.Error
	default:
		return "Streaming error"
	}
}

// OutputText renders a tool output as text, JSON-encoding structured values.
func (f Frame) OutputText() string {
	switch v := f.Output.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
