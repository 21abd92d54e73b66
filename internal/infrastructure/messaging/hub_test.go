package messaging

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"zenix/internal/application/port/output"
	"zenix/internal/domain/entity"
	"zenix/internal/infrastructure/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type collector struct {
	mu   sync.Mutex
	envs []entity.Envelope
	got  chan struct{}
}

func newCollector() *collector {
	return &collector{got: make(chan struct{}, 256)}
}

func (c *collector) handle(_ context.Context, env entity.Envelope) {
	c.mu.Lock()
	c.envs = append(c.envs, env)
	c.mu.Unlock()
	c.got <- struct{}{}
}

func (c *collector) wait(t *testing.T, n int) []entity.Envelope {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("received %d of %d envelopes", i, n)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]entity.Envelope(nil), c.envs...)
}

func TestHub_NoReceiver(t *testing.T) {
	hub := NewHub(logger.NewNop())
	defer hub.Close()

	err := hub.Send(context.Background(), output.EndpointPanel, entity.SelectionCancelled())
	assert.ErrorIs(t, err, output.ErrNoReceiver)
}

func TestHub_DeliversInOrder(t *testing.T) {
	hub := NewHub(logger.NewNop())
	defer hub.Close()

	c := newCollector()
	unsub, err := hub.Subscribe(output.EndpointPanel, c.handle)
	require.NoError(t, err)
	defer unsub()

	for _, text := range []string{"a", "ab", "abc"} {
		require.NoError(t, hub.Send(context.Background(), output.EndpointPanel, entity.StreamChunk("x", text, text)))
	}

	envs := c.wait(t, 3)
	assert.Equal(t, "a", envs[0].DisplayText)
	assert.Equal(t, "ab", envs[1].DisplayText)
	assert.Equal(t, "abc", envs[2].DisplayText)
}

func TestHub_UnsubscribeDetaches(t *testing.T) {
	hub := NewHub(logger.NewNop())
	defer hub.Close()

	unsub, err := hub.Subscribe(output.ContentEndpoint(3), func(context.Context, entity.Envelope) {})
	require.NoError(t, err)
	assert.True(t, hub.Listening(output.ContentEndpoint(3)))

	_, err = hub.Subscribe(output.ContentEndpoint(3), func(context.Context, entity.Envelope) {})
	assert.ErrorIs(t, err, ErrAlreadySubscribed)

	unsub()
	unsub()
	assert.False(t, hub.Listening(output.ContentEndpoint(3)))
	assert.ErrorIs(t, hub.Send(context.Background(), output.ContentEndpoint(3), entity.StartSelection()), output.ErrNoReceiver)
}

func TestHub_HandlerPanicDoesNotKillEndpoint(t *testing.T) {
	hub := NewHub(logger.NewNop())
	defer hub.Close()

	c := newCollector()
	unsub, err := hub.Subscribe(output.EndpointBackground, func(ctx context.Context, env entity.Envelope) {
		if env.Action == entity.ActionStartElementSelection {
			panic("boom")
		}
		c.handle(ctx, env)
	})
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, hub.Send(context.Background(), output.EndpointBackground, entity.StartElementSelection()))
	require.NoError(t, hub.Send(context.Background(), output.EndpointBackground, entity.ClearSelectedElement()))

	envs := c.wait(t, 1)
	assert.Equal(t, entity.ActionClearSelectedElement, envs[0].Action)
}

func TestHub_SendRespectsContextWhenInboxFull(t *testing.T) {
	hub := NewHub(logger.NewNop())
	hub.inboxSize = 1
	defer hub.Close()

	release := make(chan struct{})
	unsub, err := hub.Subscribe(output.EndpointPanel, func(context.Context, entity.Envelope) { <-release })
	require.NoError(t, err)
	defer unsub()
	defer close(release)

	require.NoError(t, hub.Send(context.Background(), output.EndpointPanel, entity.Envelope{}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var sendErr error
	for i := 0; i < 3 && sendErr == nil; i++ {
		sendErr = hub.Send(ctx, output.EndpointPanel, entity.Envelope{})
	}
	assert.ErrorIs(t, sendErr, context.DeadlineExceeded)
}

func TestHub_CloseRejectsSubscribers(t *testing.T) {
	hub := NewHub(logger.NewNop())
	hub.Close()

	_, err := hub.Subscribe(output.EndpointPanel, func(context.Context, entity.Envelope) {})
	assert.ErrorIs(t, err, ErrHubClosed)
}
