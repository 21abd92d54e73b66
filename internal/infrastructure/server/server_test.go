package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zenix/internal/application/port/output"
	"zenix/internal/domain/entity"
	"zenix/internal/domain/fault"
	"zenix/internal/infrastructure/llm/proxyclient"
	"zenix/internal/infrastructure/logger"
	"zenix/internal/infrastructure/metrics"
	"zenix/internal/usecase/chat"
)

type frameStep struct {
	frame entity.Frame
	err   error
}

type scriptedFrames struct {
	mu     sync.Mutex
	steps  []frameStep
	closed bool
}

func (s *scriptedFrames) Recv() (entity.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.steps) == 0 {
		return entity.Frame{}, io.EOF
	}
	st := s.steps[0]
	s.steps = s.steps[1:]
	return st.frame, st.err
}

func (s *scriptedFrames) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type stubStreamer struct {
	frames *scriptedFrames
	err    error
	got    []entity.ChatRequest
}

func (s *stubStreamer) Stream(_ context.Context, req entity.ChatRequest) (output.FrameStream, error) {
	s.got = append(s.got, req)
	if s.err != nil {
		return nil, s.err
	}
	return s.frames, nil
}

func (s *stubStreamer) Model() string { return "gemini-2.0-flash" }

func frames(fs ...entity.Frame) *scriptedFrames {
	steps := make([]frameStep, 0, len(fs))
	for _, f := range fs {
		steps = append(steps, frameStep{frame: f})
	}
	return &scriptedFrames{steps: steps}
}

func newTestServer(t *testing.T, streamer *stubStreamer, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	s := New(cfg, streamer, metrics.New(), logger.NewNop())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

const validBody = `{"message":"What is this page about?","apiKey":"k","webpageContent":{"title":"Pricing","url":"https://a.test","content":"<p>x</p>"},"history":[]}`

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url+StreamRoute, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func dataLines(t *testing.T, r io.Reader) []string {
	t.Helper()
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if data, ok := strings.CutPrefix(scanner.Text(), "data: "); ok {
			lines = append(lines, data)
		}
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, &stubStreamer{}, DefaultConfig())

	resp, err := http.Get(ts.URL + HealthRoute)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]string{"status": "ok", "message": "Zenix AI Server is running"}, body)
}

func TestAIHealth(t *testing.T) {
	s, ts := newTestServer(t, &stubStreamer{}, DefaultConfig())
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	resp, err := http.Get(ts.URL + AIHealthRoute)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ai", body["service"])
	assert.Equal(t, "gemini-2.0-flash", body["model"])
	assert.Equal(t, "2026-01-02T03:04:05Z", body["timestamp"])
}

func TestStream_WritesFramesThenDone(t *testing.T) {
	streamer := &stubStreamer{frames: frames(
		entity.Frame{Type: entity.FrameStart},
		entity.Frame{Type: entity.FrameTextStart, ID: "t1"},
		entity.Frame{Type: entity.FrameTextDelta, ID: "t1", Delta: "Hello"},
		entity.Frame{Type: entity.FrameTextEnd, ID: "t1"},
		entity.Frame{Type: entity.FrameFinish, FinishReason: "stop"},
	)}
	_, ts := newTestServer(t, streamer, DefaultConfig())

	resp := post(t, ts.URL, validBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	lines := dataLines(t, resp.Body)
	require.Len(t, lines, 6)
	assert.JSONEq(t, `{"type":"text-delta","id":"t1","delta":"Hello"}`, lines[2])
	assert.Equal(t, entity.DoneSentinel, lines[5])

	require.Len(t, streamer.got, 1)
	assert.Equal(t, "Pricing", streamer.got[0].WebpageContent.Title)
	assert.True(t, streamer.frames.closed)
}

func TestStream_MidStreamErrorBecomesErrorFrame(t *testing.T) {
	streamer := &stubStreamer{frames: &scriptedFrames{steps: []frameStep{
		{frame: entity.Frame{Type: entity.FrameTextDelta, ID: "t1", Delta: "partial"}},
		{err: fault.New(fault.RateLimited, "")},
	}}}
	_, ts := newTestServer(t, streamer, DefaultConfig())

	lines := dataLines(t, post(t, ts.URL, validBody).Body)
	require.Len(t, lines, 3)
	assert.JSONEq(t, `{"type":"error","errorText":"`+fault.MsgRateLimited+`"}`, lines[1])
	assert.Equal(t, entity.DoneSentinel, lines[2])
}

func TestStream_PreStreamErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		want   string
	}{
		{"malformed body", `{"message":`, nil, http.StatusBadRequest, msgInvalidBody},
		{"missing message", validBody, fmt.Errorf("%w: Message is required", chat.ErrInvalidRequest), http.StatusBadRequest, "Message is required"},
		{"missing key", validBody, &fault.Fault{Kind: fault.CredentialMissing, Message: "API key is required"}, http.StatusBadRequest, "API key is required"},
		{"invalid key", validBody, fault.New(fault.CredentialInvalid, ""), http.StatusUnauthorized, fault.MsgCredentialInvalid},
		{"quota", validBody, fault.New(fault.QuotaExceeded, ""), http.StatusTooManyRequests, fault.MsgQuotaExceeded},
		{"provider down", validBody, fault.Wrap(fault.NetworkUnreachable, errors.New("dial tcp")), http.StatusBadGateway, "dial tcp"},
		{"unknown", validBody, errors.New("boom"), http.StatusInternalServerError, msgInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ts := newTestServer(t, &stubStreamer{err: tt.err}, DefaultConfig())

			resp := post(t, ts.URL, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.want, body["error"])
		})
	}
}

func TestStream_BodyLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBodyBytes = 64
	_, ts := newTestServer(t, &stubStreamer{frames: frames()}, cfg)

	resp := post(t, ts.URL, validBody)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestStream_RateLimited(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 1
	s, ts := newTestServer(t, &stubStreamer{frames: frames()}, cfg)

	first := post(t, ts.URL, validBody)
	assert.Equal(t, http.StatusOK, first.StatusCode)
	_, _ = io.Copy(io.Discard, first.Body)

	second := post(t, ts.URL, validBody)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.Equal(t, 1.0, promtest.ToFloat64(s.metrics.RateLimited))
}

func TestCORSPreflight(t *testing.T) {
	_, ts := newTestServer(t, &stubStreamer{}, DefaultConfig())

	req, err := http.NewRequest(http.MethodOptions, ts.URL+StreamRoute, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "chrome-extension://abc")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, &stubStreamer{frames: frames(entity.Frame{Type: entity.FrameStart})}, DefaultConfig())
	_, _ = io.Copy(io.Discard, post(t, ts.URL, validBody).Body)

	resp, err := http.Get(ts.URL + MetricsRoute)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `zenix_stream_frames_total{type="start"} 1`)
	assert.Contains(t, string(body), `zenix_http_requests_total{route="/api/ai/stream",status="OK"} 1`)
}

func TestProxyClientRoundTrip(t *testing.T) {
	streamer := &stubStreamer{frames: frames(
		entity.Frame{Type: entity.FrameStart},
		entity.Frame{Type: entity.FrameTextDelta, ID: "t1", Delta: "Starter is $10."},
		entity.Frame{Type: entity.FrameToolOutputError, ToolCallID: "c1", ErrorText: "no clock"},
		entity.Frame{Type: entity.FrameFinish, FinishReason: "stop"},
	)}
	_, ts := newTestServer(t, streamer, DefaultConfig())

	cfg := proxyclient.DefaultConfig()
	cfg.ServerURL = ts.URL
	client := proxyclient.New(cfg, logger.NewNop())

	stream, err := client.Stream(context.Background(), entity.ChatRequest{
		Message:        "price?",
		APIKey:         "k",
		WebpageContent: &entity.PageContent{Title: "Pricing", URL: "https://a.test"},
	})
	require.NoError(t, err)
	defer stream.Close()

	var got []entity.Frame
	for {
		f, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, f)
	}
	require.Len(t, got, 4)
	assert.Equal(t, "Starter is $10.", got[1].Delta)
	assert.Equal(t, "no clock", got[2].ErrorText)
	assert.Equal(t, "price?", streamer.got[0].Message)
}

func TestProxyClientSeesRejection(t *testing.T) {
	_, ts := newTestServer(t, &stubStreamer{err: fault.New(fault.CredentialInvalid, "")}, DefaultConfig())

	cfg := proxyclient.DefaultConfig()
	cfg.ServerURL = ts.URL
	_, err := proxyclient.New(cfg, logger.NewNop()).Stream(context.Background(), entity.ChatRequest{
		Message:        "price?",
		APIKey:         "bad",
		WebpageContent: &entity.PageContent{},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, fault.New(fault.CredentialInvalid, ""))
}
