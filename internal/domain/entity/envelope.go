package entity

// Action tags a message exchanged between the panel, background and content contexts.
type Action string

const (
	ActionAskAIStream               Action = "askAIStream"
	ActionStartElementSelection     Action = "startElementSelection"
	ActionElementSelected           Action = "elementSelected"
	ActionSelectionCancelled        Action = "selectionCancelled"
	ActionClearSelectedElement      Action = "clearSelectedElement"
	ActionStartSelection            Action = "startSelection"
	ActionCancelSelection           Action = "cancelSelection"
	ActionStreamChunk               Action = "streamChunk"
	ActionStreamComplete            Action = "streamComplete"
	ActionStreamError               Action = "streamError"
	ActionTabChanged                Action = "tabChanged"
	ActionElementSelectionComplete  Action = "elementSelectionComplete"
	ActionElementSelectionCancelled Action = "elementSelectionCancelled"
	ActionSelectionError            Action = "selectionError"
)

// Envelope is the tagged payload carried between contexts. Only the fields
// relevant to Action are set.
type Envelope struct {
	Action      Action             `json:"action"`
	Message     string             `json:"message,omitempty"`
	History     []ConversationTurn `json:"history,omitempty"`
	Content     *SelectedElement   `json:"content,omitempty"`
	Chunk       string             `json:"chunk,omitempty"`
	DisplayText string             `json:"displayText,omitempty"`
	FullText    string             `json:"fullText,omitempty"`
	IsComplete  bool               `json:"isComplete,omitempty"`
	ChunkCount  int                `json:"chunkCount,omitempty"`
	Truncated   bool               `json:"truncated,omitempty"`
	Error       string             `json:"error,omitempty"`
	URL         string             `json:"url,omitempty"`
	TabID       int                `json:"tabId,omitempty"`
	// StreamID ties askAIStream to the notifications of the run it started.
	StreamID string `json:"streamId,omitempty"`
}

// ForStream returns a copy of e tagged with a stream id.
func (e Envelope) ForStream(id string) Envelope {
	e.StreamID = id
	return e
}

func AskAIStream(message string, history []ConversationTurn) Envelope {
	return Envelope{Action: ActionAskAIStream, Message: message, History: history}
}

func StartElementSelection() Envelope {
	return Envelope{Action: ActionStartElementSelection}
}

func ElementSelected(el SelectedElement) Envelope {
	return Envelope{Action: ActionElementSelected, Content: &el}
}

func SelectionCancelled() Envelope {
	return Envelope{Action: ActionSelectionCancelled}
}

func ClearSelectedElement() Envelope {
	return Envelope{Action: ActionClearSelectedElement}
}

func StartSelection() Envelope {
	return Envelope{Action: ActionStartSelection}
}

func CancelSelection() Envelope {
	return Envelope{Action: ActionCancelSelection}
}

func StreamChunk(chunk, displayText, fullText string) Envelope {
	return Envelope{Action: ActionStreamChunk, Chunk: chunk, DisplayText: displayText, FullText: fullText}
}

func StreamComplete(displayText, fullText string, chunkCount int, truncated bool) Envelope {
	return Envelope{
		Action:      ActionStreamComplete,
		DisplayText: displayText,
		FullText:    fullText,
		ChunkCount:  chunkCount,
		IsComplete:  true,
		Truncated:   truncated,
	}
}

func StreamError(message string) Envelope {
	return Envelope{Action: ActionStreamError, Error: message}
}

func TabChanged(tab Tab) Envelope {
	return Envelope{Action: ActionTabChanged, URL: tab.URL, TabID: tab.ID}
}

func ElementSelectionComplete(el SelectedElement) Envelope {
	return Envelope{Action: ActionElementSelectionComplete, Content: &el}
}

func ElementSelectionCancelled() Envelope {
	return Envelope{Action: ActionElementSelectionCancelled}
}

func SelectionError(message string) Envelope {
	return Envelope{Action: ActionSelectionError, Error: message}
}
