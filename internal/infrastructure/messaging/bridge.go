package messaging

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"zenix/internal/application/port/output"
	"zenix/internal/domain/entity"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// PanelBridge lets a panel in another process attach to the hub over a
// websocket. Envelopes addressed to the panel endpoint go down the socket;
// envelopes the remote panel sends go to the background endpoint.
type PanelBridge struct {
	hub    *Hub
	logger output.LoggerPort
}

func NewPanelBridge(hub *Hub, logger output.LoggerPort) *PanelBridge {
	return &PanelBridge{hub: hub, logger: logger}
}

func (b *PanelBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if b.hub.Listening(output.EndpointPanel) {
		http.Error(w, "a panel is already attached", http.StatusConflict)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	sc := newSocket(conn)
	defer sc.close()

	unsubscribe, err := b.hub.Subscribe(output.EndpointPanel, func(ctx context.Context, env entity.Envelope) {
		if err := sc.write(env); err != nil {
			b.logger.Debug("Panel socket write failed", "action", env.Action, "error", err)
		}
	})
	if err != nil {
		b.logger.Warn("Panel attach refused", "error", err)
		return
	}
	defer unsubscribe()
	b.logger.Info("Remote panel attached", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go sc.keepAlive(ctx)

	for {
		var env entity.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.logger.Debug("Panel socket read ended", "error", err)
			}
			break
		}
		if err := b.hub.Send(ctx, output.EndpointBackground, env); err != nil {
			b.logger.Warn("Panel message dropped", "action", env.Action, "error", err)
		}
	}
	b.logger.Info("Remote panel detached", "remote", r.RemoteAddr)
}

// RemoteBus is the panel side of PanelBridge. It only knows the panel and
// background endpoints.
type RemoteBus struct {
	sc     *socket
	logger output.LoggerPort

	mu      sync.Mutex
	handler output.Handler

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

var _ output.MessageBus = (*RemoteBus)(nil)

func Dial(ctx context.Context, url string, logger output.LoggerPort) (*RemoteBus, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	rctx, cancel := context.WithCancel(context.Background())
	rb := &RemoteBus{
		sc:     newSocket(conn),
		logger: logger,
		ctx:    rctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go rb.readLoop()
	return rb, nil
}

func (rb *RemoteBus) Send(_ context.Context, to output.Endpoint, env entity.Envelope) error {
	if to != output.EndpointBackground {
		return output.ErrNoReceiver
	}
	if rb.ctx.Err() != nil {
		return output.ErrNoReceiver
	}
	return rb.sc.write(env)
}

func (rb *RemoteBus) Subscribe(to output.Endpoint, h output.Handler) (func(), error) {
	if to != output.EndpointPanel {
		return nil, errors.New("remote bus only serves the panel endpoint")
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.handler != nil {
		return nil, ErrAlreadySubscribed
	}
	rb.handler = h
	return func() {
		rb.mu.Lock()
		rb.handler = nil
		rb.mu.Unlock()
	}, nil
}

// Done is closed when the connection to the background ends.
func (rb *RemoteBus) Done() <-chan struct{} {
	return rb.done
}

func (rb *RemoteBus) Close() error {
	rb.cancel()
	err := rb.sc.close()
	<-rb.done
	return err
}

func (rb *RemoteBus) readLoop() {
	defer close(rb.done)
	defer rb.cancel()

	for {
		var env entity.Envelope
		if err := rb.sc.conn.ReadJSON(&env); err != nil {
			if rb.ctx.Err() == nil {
				rb.logger.Debug("Background socket read ended", "error", err)
			}
			return
		}
		rb.mu.Lock()
		h := rb.handler
		rb.mu.Unlock()
		if h != nil {
			h(rb.ctx, env)
		}
	}
}

// socket serializes writes; gorilla connections allow one concurrent writer.
type socket struct {
	conn *websocket.Conn
	mu   sync.Mutex
	once sync.Once
}

func newSocket(conn *websocket.Conn) *socket {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})
	return &socket{conn: conn}
}

func (s *socket) write(env entity.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(env)
}

func (s *socket) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (s *socket) close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		s.mu.Unlock()
		err = s.conn.Close()
	})
	return err
}
