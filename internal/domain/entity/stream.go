package entity

type StreamEventKind string

const (
	EventDelta      StreamEventKind = "delta"
	EventToolResult StreamEventKind = "toolResult"
	EventToolError  StreamEventKind = "toolError"
	EventComplete   StreamEventKind = "complete"
	EventError      StreamEventKind = "error"
)

// StreamEvent is one normalized step of a model response.
//
// Text is set for delta, toolResult and toolError. DisplayText and FullText
// are only filled by the relay on complete. Truncated marks a completion
// forced by the tool step limit.
type StreamEvent struct {
	Kind        StreamEventKind
	Text        string
	DisplayText string
	FullText    string
	Message     string
	Truncated   bool
}

func DeltaEvent(text string) StreamEvent {
	return StreamEvent{Kind: EventDelta, Text: text}
}

func ToolResultEvent(text string) StreamEvent {
	return StreamEvent{Kind: EventToolResult, Text: text}
}

func ToolErrorEvent(text string) StreamEvent {
	return StreamEvent{Kind: EventToolError, Text: text}
}

func CompleteEvent(truncated bool) StreamEvent {
	return StreamEvent{Kind: EventComplete, Truncated: truncated}
}

func ErrorEvent(message string) StreamEvent {
	return StreamEvent{Kind: EventError, Message: message}
}

// StreamOutcome summarizes a finished relay run.
type StreamOutcome struct {
	StreamID    string
	Completed   bool
	DisplayText string
	FullText    string
	ChunkCount  int
	Truncated   bool
	ErrorKind   string
	Error       string
}
