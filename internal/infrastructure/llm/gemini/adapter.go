// Package gemini streams chat turns from Google's Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"

	"google.golang.org/genai"

	"zenix/internal/application/port/output"
	"zenix/internal/domain/entity"
	"zenix/internal/domain/fault"
)

const DefaultModel = "gemini-2.0-flash"

var _ output.LLMPort = (*Adapter)(nil)

type Adapter struct {
	client *genai.Client
	model  string
	logger output.LoggerPort
}

type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the Gemini endpoint, mostly for tests.
	BaseURL    string
	HTTPClient *http.Client
	Logger     output.LoggerPort
}

func NewAdapter(ctx context.Context, cfg Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, fault.New(fault.CredentialMissing, "")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Adapter{client: client, model: cfg.Model, logger: cfg.Logger}, nil
}

// StreamChat starts the request and waits for the first response so that
// rejected keys and exhausted quotas are returned here, not mid-stream.
func (a *Adapter) StreamChat(ctx context.Context, req output.ChatRequest) (output.ChunkStream, error) {
	system, contents := convertMessages(req.Messages)

	temp := req.Temperature
	gcc := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Temperature:       &temp,
	}
	if tools := convertTools(req.Tools); tools != nil {
		gcc.Tools = tools
	}

	if a.logger != nil {
		a.logger.Debug("Creating Gemini stream", "model", a.model, "contents", len(contents), "tools", len(req.Tools))
	}

	next, stop := iter.Pull2(a.client.Models.GenerateContentStream(ctx, a.model, contents, gcc))
	first, err, ok := next()
	if !ok {
		stop()
		return &chunkStream{done: true}, nil
	}
	if err != nil {
		stop()
		return nil, toFault(err)
	}
	return &chunkStream{next: next, stop: stop, pending: first}, nil
}

type chunkStream struct {
	next    func() (*genai.GenerateContentResponse, error, bool)
	stop    func()
	pending *genai.GenerateContentResponse
	done    bool
}

func (s *chunkStream) Recv() (output.StreamChunk, error) {
	for !s.done {
		resp := s.pending
		s.pending = nil
		if resp == nil {
			var (
				err error
				ok  bool
			)
			resp, err, ok = s.next()
			if !ok {
				s.done = true
				break
			}
			if err != nil {
				s.done = true
				return output.StreamChunk{}, toFault(err)
			}
		}

		if chunk, ok := convertResponse(resp); ok {
			return chunk, nil
		}
	}
	return output.StreamChunk{}, io.EOF
}

func (s *chunkStream) Close() error {
	s.done = true
	if s.stop != nil {
		s.stop()
	}
	return nil
}

func convertResponse(resp *genai.GenerateContentResponse) (output.StreamChunk, bool) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return output.StreamChunk{}, false
	}
	cand := resp.Candidates[0]

	var chunk output.StreamChunk
	for _, part := range cand.Content.Parts {
		switch {
		case part.Thought:
		case part.FunctionCall != nil:
			args, _ := json.Marshal(part.FunctionCall.Args)
			chunk.ToolCalls = append(chunk.ToolCalls, entity.ToolCall{
				ID:        part.FunctionCall.ID,
				Name:      entity.ToolName(part.FunctionCall.Name),
				Arguments: string(args),
			})
		case part.Text != "":
			chunk.Text += part.Text
		}
	}
	chunk.FinishReason = string(cand.FinishReason)
	return chunk, chunk.Text != "" || len(chunk.ToolCalls) > 0
}

func convertMessages(messages []entity.Message) (*genai.Content, []*genai.Content) {
	var (
		system   *genai.Content
		contents []*genai.Content
		results  []*genai.Part
	)
	flushResults := func() {
		if len(results) > 0 {
			contents = append(contents, genai.NewContentFromParts(results, genai.RoleUser))
			results = nil
		}
	}

	for _, msg := range messages {
		if msg.Role != entity.RoleTool {
			flushResults()
		}
		switch msg.Role {
		case entity.RoleSystem:
			system = genai.NewContentFromText(msg.Content, genai.RoleUser)
		case entity.RoleUser:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case entity.RoleAssistant:
			var parts []*genai.Part
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var args map[string]any
				_ = json.Unmarshal([]byte(tc.Arguments), &args)
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   tc.ID,
					Name: tc.Name.String(),
					Args: args,
				}})
			}
			if len(parts) > 0 {
				contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
			}
		case entity.RoleTool:
			results = append(results, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       msg.ToolCallID,
				Name:     msg.Name,
				Response: map[string]any{"output": msg.Content},
			}})
		}
	}
	flushResults()
	return system, contents
}

func convertTools(tools []entity.ToolDefinition) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 t.Name.String(),
			Description:          t.Description,
			ParametersJsonSchema: t.Parameters,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// toFault classifies by the API status code when one is present.
func toFault(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return statusFault(apiErr, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr.Code != 0 {
		return statusFault(*apiErrPtr, err)
	}
	return fault.Classify(err)
}

func statusFault(apiErr genai.APIError, err error) *fault.Fault {
	// Gemini answers a bad key with 400 INVALID_ARGUMENT.
	if apiErr.Code == http.StatusBadRequest && apiErr.Status == "INVALID_ARGUMENT" {
		if k := fault.FromMessage(apiErr.Message); k.Kind == fault.CredentialInvalid {
			k.Status = http.StatusUnauthorized
			k.Err = err
			return k
		}
	}
	f := fault.FromStatus(apiErr.Code, apiErr.Status+" "+apiErr.Message)
	if f.Kind == fault.Unknown || f.Kind == fault.ProtocolError {
		f.Message = apiErr.Message
	}
	f.Err = err
	return f
}
