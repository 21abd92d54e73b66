package entity

// ChatRequest is the body of a streaming question, as posted to the proxy.
type ChatRequest struct {
	// StreamID names the relay run; it never leaves the process.
	StreamID       string             `json:"-"`
	Message        string             `json:"message"`
	WebpageContent *PageContent       `json:"webpageContent"`
	History        []ConversationTurn `json:"history"`
	APIKey         string             `json:"apiKey"`
}
