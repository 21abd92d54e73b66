// Package chat answers a page question with a UI message stream, running the
// model's tool calls locally between steps.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"zenix/internal/application/port/input"
	"zenix/internal/application/port/output"
	"zenix/internal/domain/entity"
	"zenix/internal/domain/fault"
)

const (
	DefaultMaxSteps    = 5
	DefaultTemperature = 0.7

	maxObservationLen = 20000
)

// ErrInvalidRequest marks a request the proxy must reject with 400.
var ErrInvalidRequest = errors.New("invalid request")

var (
	_ input.ChatStreamer = (*Service)(nil)
	_ output.FrameSource = (*Service)(nil)
)

type Config struct {
	MaxSteps    int     `yaml:"max_steps" split_words:"true"`
	Temperature float32 `yaml:"temperature" split_words:"true"`
}

func DefaultConfig() Config {
	return Config{MaxSteps: DefaultMaxSteps, Temperature: DefaultTemperature}
}

type Service struct {
	factory output.LLMFactory
	prompts output.PromptBuilder
	tools   output.ToolRegistry
	logger  output.LoggerPort
	cfg     Config
	newID   func() string
}

func NewService(
	factory output.LLMFactory,
	prompts output.PromptBuilder,
	tools output.ToolRegistry,
	logger output.LoggerPort,
	cfg Config,
) *Service {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	return &Service{
		factory: factory,
		prompts: prompts,
		tools:   tools,
		logger:  logger,
		cfg:     cfg,
		newID:   uuid.NewString,
	}
}

func (s *Service) Model() string {
	return s.factory.Model()
}

// Validate reports the first missing field the way the proxy words it.
func Validate(req entity.ChatRequest) error {
	switch {
	case strings.TrimSpace(req.Message) == "":
		return fmt.Errorf("%w: Message is required", ErrInvalidRequest)
	case req.APIKey == "":
		return &fault.Fault{Kind: fault.CredentialMissing, Message: "API key is required"}
	case req.WebpageContent == nil:
		return fmt.Errorf("%w: Webpage content is required", ErrInvalidRequest)
	}
	return nil
}

// Stream validates req, opens the first model step and returns the frame
// stream. Errors before the first step has started are returned directly.
func (s *Service) Stream(ctx context.Context, req entity.ChatRequest) (output.FrameStream, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	llm, err := s.factory.New(ctx, req.APIKey)
	if err != nil {
		return nil, fault.Classify(err)
	}

	messages, err := s.prompts.BuildMessages(req.Message, *req.WebpageContent, withoutEcho(req.History, req.Message))
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	defs := s.tools.Definitions()
	first, err := llm.StreamChat(ctx, output.ChatRequest{
		Messages:    messages,
		Tools:       defs,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return nil, fault.Classify(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	out := newFrameStream(cancel)
	r := &run{
		svc:      s,
		llm:      llm,
		defs:     defs,
		messages: messages,
		out:      out,
		textID:   s.newID(),
		logger:   s.logger.WithField("message_id", s.newID()),
	}
	go r.loop(ctx, first)
	return out, nil
}

// withoutEcho drops a trailing user turn equal to message. Older panels sent
// the current question both as history and as the message.
func withoutEcho(history []entity.ConversationTurn, message string) []entity.ConversationTurn {
	if n := len(history); n > 0 && history[n-1].Role == entity.RoleUser && history[n-1].Content == message {
		return history[:n-1]
	}
	return history
}

type run struct {
	svc      *Service
	llm      output.LLMPort
	defs     []entity.ToolDefinition
	messages []entity.Message
	out      *frameStream
	textID   string
	textOpen bool
	logger   output.LoggerPort
}

func (r *run) loop(ctx context.Context, stream output.ChunkStream) {
	defer r.out.finish()

	if !r.emit(ctx, entity.Frame{Type: entity.FrameStart}) {
		stream.Close()
		return
	}

	for step := 1; ; step++ {
		r.emit(ctx, entity.Frame{Type: entity.FrameStartStep})

		text, calls, err := r.consume(ctx, stream)
		stream.Close()
		if err != nil {
			r.fail(ctx, err)
			return
		}

		r.messages = append(r.messages, entity.Message{
			Role:      entity.RoleAssistant,
			Content:   text,
			ToolCalls: calls,
		})

		if len(calls) == 0 {
			r.emit(ctx, entity.Frame{Type: entity.FrameFinishStep})
			r.finish(ctx, entity.FinishReasonStop, step)
			return
		}

		for _, tc := range calls {
			if !r.callTool(ctx, tc) {
				return
			}
		}
		r.emit(ctx, entity.Frame{Type: entity.FrameFinishStep})

		if step >= r.svc.cfg.MaxSteps {
			r.logger.Warn("Step limit reached", "steps", step)
			r.finish(ctx, entity.FinishReasonStepLimit, step)
			return
		}

		stream, err = r.llm.StreamChat(ctx, output.ChatRequest{
			Messages:    r.messages,
			Tools:       r.defs,
			Temperature: r.svc.cfg.Temperature,
		})
		if err != nil {
			r.fail(ctx, err)
			return
		}
	}
}

func (r *run) consume(ctx context.Context, stream output.ChunkStream) (string, []entity.ToolCall, error) {
	var (
		text  strings.Builder
		calls []entity.ToolCall
	)
	for {
		chunk, err := stream.Recv()
		if err != nil {
			if isEOF(err) {
				return text.String(), calls, nil
			}
			return text.String(), calls, err
		}

		if chunk.Text != "" {
			if !r.textOpen {
				r.textOpen = true
				r.emit(ctx, entity.Frame{Type: entity.FrameTextStart, ID: r.textID})
			}
			text.WriteString(chunk.Text)
			if !r.emit(ctx, entity.Frame{Type: entity.FrameTextDelta, ID: r.textID, Delta: chunk.Text}) {
				return text.String(), calls, ctx.Err()
			}
		}
		calls = append(calls, chunk.ToolCalls...)
	}
}

func (r *run) callTool(ctx context.Context, tc entity.ToolCall) bool {
	if tc.ID == "" {
		tc.ID = r.svc.newID()
	}
	r.emit(ctx, entity.Frame{
		Type:       entity.FrameToolInputAvailable,
		ToolCallID: tc.ID,
		ToolName:   tc.Name.String(),
		Input:      decodeArguments(tc.Arguments),
	})

	result, err := r.executeTool(ctx, tc)
	if err != nil {
		r.messages = append(r.messages, entity.Message{
			Role:       entity.RoleTool,
			ToolCallID: tc.ID,
			Name:       tc.Name.String(),
			Content:    "Error: " + err.Error(),
		})
		return r.emit(ctx, entity.Frame{Type: entity.FrameToolOutputError, ToolCallID: tc.ID, ErrorText: err.Error()})
	}

	r.messages = append(r.messages, entity.Message{
		Role:       entity.RoleTool,
		ToolCallID: tc.ID,
		Name:       tc.Name.String(),
		Content:    result,
	})
	return r.emit(ctx, entity.Frame{Type: entity.FrameToolOutputAvailable, ToolCallID: tc.ID, Output: result})
}

func (r *run) executeTool(ctx context.Context, tc entity.ToolCall) (string, error) {
	tool, ok := r.svc.tools.Get(tc.Name)
	if !ok {
		r.logger.Warn("Unknown tool called", "name", tc.Name)
		return "", fmt.Errorf("unknown tool '%s'", tc.Name)
	}

	r.logger.Info("Executing tool", "name", tc.Name, "args", tc.Arguments)

	result, err := tool.Execute(ctx, tc.Arguments)
	if err != nil {
		r.logger.Error("Tool execution failed", "name", tc.Name, "error", err)
		return "", err
	}

	if len(result) > maxObservationLen {
		result = result[:maxObservationLen] + "\n... (truncated)"
	}
	return result, nil
}

func (r *run) finish(ctx context.Context, reason string, steps int) {
	if r.textOpen {
		r.emit(ctx, entity.Frame{Type: entity.FrameTextEnd, ID: r.textID})
	}
	r.emit(ctx, entity.Frame{Type: entity.FrameFinish, FinishReason: reason})
	r.logger.Info("Streaming complete", "steps", steps, "finish_reason", reason)
}

func (r *run) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	f := fault.Classify(err)
	r.logger.Error("Streaming failed", "kind", f.Kind, "error", err)
	r.emit(ctx, entity.Frame{Type: entity.FrameError, ErrorText: f.UserMessage()})
}

func (r *run) emit(ctx context.Context, f entity.Frame) bool {
	return r.out.push(ctx, f)
}

func decodeArguments(args string) any {
	if strings.TrimSpace(args) == "" {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal([]byte(args), &v); err != nil {
		return args
	}
	return v
}
