// Package openai streams chat completions from any OpenAI compatible
// endpoint. OpenRouter is the default.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/sashabaranov/go-openai"

	"zenix/internal/application/port/output"
	"zenix/internal/domain/entity"
	"zenix/internal/domain/fault"
)

const DefaultBaseURL = "https://openrouter.ai/api/v1"

var _ output.LLMPort = (*Adapter)(nil)

type Adapter struct {
	client *openai.Client
	model  string
	logger output.LoggerPort
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Logger  output.LoggerPort
}

func DefaultConfig(apiKey, model string) Config {
	return Config{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: DefaultBaseURL,
	}
}

type loggingTransport struct {
	base   http.RoundTripper
	logger output.LoggerPort
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var bodyLen int
	if req.Body != nil {
		bodyBytes, _ := io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		bodyLen = len(bodyBytes)
	}
	t.logger.Debug("HTTP Request", "method", req.Method, "url", req.URL.String(), "bodyLen", bodyLen)

	resp, err := t.base.RoundTrip(req)
	if resp != nil {
		t.logger.Debug("HTTP Response", "status", resp.Status, "statusCode", resp.StatusCode)
	}
	return resp, err
}

func NewAdapter(cfg Config) *Adapter {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	if cfg.Logger != nil {
		config.HTTPClient = &http.Client{
			Transport: &loggingTransport{base: http.DefaultTransport, logger: cfg.Logger},
		}
	}

	return &Adapter{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

func (a *Adapter) StreamChat(ctx context.Context, req output.ChatRequest) (output.ChunkStream, error) {
	messages := convertMessages(req.Messages)
	tools := convertTools(req.Tools)

	if a.logger != nil {
		a.logger.Debug("Creating chat completion stream",
			"model", a.model,
			"messagesCount", len(messages),
			"toolsCount", len(tools),
			"temperature", req.Temperature)
	}

	ccr := openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    messages,
		Temperature: req.Temperature,
		Stream:      true,
	}
	if len(tools) > 0 {
		ccr.Tools = tools
		ccr.ToolChoice = "auto"
	}

	stream, err := a.client.CreateChatCompletionStream(ctx, ccr)
	if err != nil {
		return nil, toFault(err)
	}
	return &chunkStream{stream: stream, calls: make(map[int]*entity.ToolCall)}, nil
}

// chunkStream merges tool call fragments by index and reports them in one
// chunk when the choice finishes or the stream ends.
type chunkStream struct {
	stream  *openai.ChatCompletionStream
	calls   map[int]*entity.ToolCall
	flushed bool
}

func (s *chunkStream) Recv() (output.StreamChunk, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			if chunk, ok := s.flush(""); ok {
				return chunk, nil
			}
			return output.StreamChunk{}, io.EOF
		}
		if err != nil {
			return output.StreamChunk{}, toFault(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		choice := resp.Choices[0]
		for _, tc := range choice.Delta.ToolCalls {
			s.merge(tc)
		}

		if choice.FinishReason != "" {
			if chunk, ok := s.flush(string(choice.FinishReason)); ok {
				chunk.Text = choice.Delta.Content
				return chunk, nil
			}
		}
		if choice.Delta.Content != "" {
			return output.StreamChunk{Text: choice.Delta.Content, FinishReason: string(choice.FinishReason)}, nil
		}
	}
}

func (s *chunkStream) merge(tc openai.ToolCall) {
	idx := 0
	if tc.Index != nil {
		idx = *tc.Index
	}
	if existing, ok := s.calls[idx]; ok {
		existing.Arguments += tc.Function.Arguments
		if tc.Function.Name != "" {
			existing.Name = entity.ToolName(tc.Function.Name)
		}
		if tc.ID != "" {
			existing.ID = tc.ID
		}
		return
	}
	s.calls[idx] = &entity.ToolCall{
		ID:        tc.ID,
		Name:      entity.ToolName(tc.Function.Name),
		Arguments: tc.Function.Arguments,
	}
}

func (s *chunkStream) flush(reason string) (output.StreamChunk, bool) {
	if s.flushed || len(s.calls) == 0 {
		return output.StreamChunk{}, false
	}
	s.flushed = true

	indices := make([]int, 0, len(s.calls))
	for idx := range s.calls {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	chunk := output.StreamChunk{FinishReason: reason}
	for _, idx := range indices {
		chunk.ToolCalls = append(chunk.ToolCalls, *s.calls[idx])
	}
	return chunk, true
}

func (s *chunkStream) Close() error {
	return s.stream.Close()
}

// toFault classifies by HTTP status when go-openai exposes one.
func toFault(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		f := fault.FromStatus(apiErr.HTTPStatusCode, apiErr.Message)
		f.Err = err
		return f
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		f := fault.FromStatus(reqErr.HTTPStatusCode, string(reqErr.Body))
		f.Err = err
		return f
	}
	return fault.Classify(fmt.Errorf("chat stream: %w", err))
}

func convertMessages(messages []entity.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		oaiMsg := openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}

		if msg.ToolCallID != "" {
			oaiMsg.ToolCallID = msg.ToolCallID
		}
		if msg.Name != "" {
			oaiMsg.Name = msg.Name
		}

		for _, tc := range msg.ToolCalls {
			oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name.String(),
					Arguments: tc.Arguments,
				},
			})
		}

		result = append(result, oaiMsg)
	}
	return result
}

func convertTools(tools []entity.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name.String(),
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return result
}
