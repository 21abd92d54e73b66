package chat

import (
	"context"
	"errors"
	"io"

	"zenix/internal/application/port/output"
	"zenix/internal/domain/entity"
)

var _ output.FrameStream = (*frameStream)(nil)

// frameStream hands frames from the step loop to a single reader.
type frameStream struct {
	frames chan entity.Frame
	done   chan struct{}
	cancel context.CancelFunc
}

func newFrameStream(cancel context.CancelFunc) *frameStream {
	return &frameStream{
		frames: make(chan entity.Frame, 16),
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

func (s *frameStream) push(ctx context.Context, f entity.Frame) bool {
	select {
	case s.frames <- f:
		return true
	case <-ctx.Done():
		return false
	}
}

// finish is called by the producer once, after its last push.
func (s *frameStream) finish() {
	close(s.frames)
	close(s.done)
}

func (s *frameStream) Recv() (entity.Frame, error) {
	f, ok := <-s.frames
	if !ok {
		return entity.Frame{}, io.EOF
	}
	return f, nil
}

// Close stops the producer and waits for it to exit.
func (s *frameStream) Close() error {
	s.cancel()
	<-s.done
	return nil
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
