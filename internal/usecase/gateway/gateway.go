// Package gateway turns the proxy's UI message stream into the stream events
// the relay consumes.
package gateway

import (
	"context"
	"errors"
	"io"

	"zenix/internal/application/port/output"
	"zenix/internal/domain/entity"
	"zenix/internal/domain/fault"
)

var _ output.ModelGateway = (*Gateway)(nil)

type Gateway struct {
	source output.FrameSource
	logger output.LoggerPort
}

func New(source output.FrameSource, logger output.LoggerPort) *Gateway {
	return &Gateway{source: source, logger: logger}
}

// Stream opens the frame stream for req. A failure before the first frame is
// returned as a *fault.Fault; later failures surface through Recv.
func (g *Gateway) Stream(ctx context.Context, req entity.ChatRequest) (output.EventStream, error) {
	frames, err := g.source.Stream(ctx, req)
	if err != nil {
		return nil, fault.Classify(err)
	}
	return Normalize(frames, g.logger), nil
}

// Normalize wraps a frame stream. Frame types it does not know are skipped.
func Normalize(frames output.FrameStream, logger output.LoggerPort) output.EventStream {
	return &eventStream{frames: frames, logger: logger}
}

type eventStream struct {
	frames output.FrameStream
	logger output.LoggerPort

	// textEnded is set by text-end and cleared by any later content frame.
	// It lets a finish frame that follows carry the truncation flag instead
	// of completing early on the text-end of an intermediate step.
	textEnded bool
	done      bool
}

func (s *eventStream) Recv() (entity.StreamEvent, error) {
	if s.done {
		return entity.StreamEvent{}, io.EOF
	}

	for {
		f, err := s.frames.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			if s.textEnded {
				return entity.CompleteEvent(false), nil
			}
			return entity.StreamEvent{}, io.EOF
		}
		if err != nil {
			s.done = true
			return entity.StreamEvent{}, fault.Classify(err)
		}

		switch f.Type {
		case entity.FrameTextDelta:
			s.textEnded = false
			if f.Delta == "" {
				continue
			}
			return entity.DeltaEvent(f.Delta), nil

		case entity.FrameToolOutputAvailable:
			s.textEnded = false
			return entity.ToolResultEvent(f.OutputText()), nil

		case entity.FrameToolOutputError:
			s.textEnded = false
			return entity.ToolErrorEvent(f.ErrorMessage()), nil

		case entity.FrameTextStart, entity.FrameToolInputAvailable:
			s.textEnded = false

		case entity.FrameTextEnd:
			s.textEnded = true

		case entity.FrameFinish:
			s.done = true
			return entity.CompleteEvent(f.FinishReason == entity.FinishReasonStepLimit), nil

		case entity.FrameError:
			s.done = true
			return entity.ErrorEvent(f.ErrorMessage()), nil

		default:
			if s.logger != nil {
				s.logger.Debug("Skipping frame", "type", f.Type)
			}
		}
	}
}

func (s *eventStream) Close() error {
	return s.frames.Close()
}
