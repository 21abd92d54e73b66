// Package proxyclient reads the proxy's UI message stream over HTTP.
package proxyclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"zenix/internal/application/port/output"
	"zenix/internal/domain/entity"
	"zenix/internal/domain/fault"
)

const (
	streamPath   = "/api/ai/stream"
	maxErrorBody = 64 << 10
	maxFrameSize = 4 << 20
)

var _ output.FrameSource = (*Client)(nil)

type Config struct {
	ServerURL    string        `yaml:"server_url" split_words:"true"`
	RetryMax     int           `yaml:"retry_max" split_words:"true"`
	RetryWaitMin time.Duration `yaml:"retry_wait_min" split_words:"true"`
	RetryWaitMax time.Duration `yaml:"retry_wait_max" split_words:"true"`
}

func DefaultConfig() Config {
	return Config{
		ServerURL:    "http://localhost:3000",
		RetryMax:     2,
		RetryWaitMin: 200 * time.Millisecond,
		RetryWaitMax: 2 * time.Second,
	}
}

type Client struct {
	http      *retryablehttp.Client
	serverURL string
	logger    output.LoggerPort
}

func New(cfg Config, logger output.LoggerPort) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = cfg.RetryWaitMin
	rc.RetryWaitMax = cfg.RetryWaitMax
	rc.CheckRetry = retryPolicy
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = nil
	if logger != nil {
		rc.Logger = retryablehttp.LeveledLogger(logger)
	}

	return &Client{
		http:      rc,
		serverURL: strings.TrimRight(cfg.ServerURL, "/"),
		logger:    logger,
	}
}

// retryPolicy retries connection failures and gateway errors. Model errors
// are never retried since a second attempt would bill twice.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}

func (c *Client) Stream(ctx context.Context, req entity.ChatRequest) (output.FrameStream, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	hreq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+streamPath, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(hreq)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fault.Unreachable(c.serverURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, statusFault(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxFrameSize)
	return &frameStream{body: resp.Body, scanner: scanner, serverURL: c.serverURL, ctx: ctx}, nil
}

func statusFault(resp *http.Response) *fault.Fault {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		msg = payload.Error
	}
	return fault.FromStatus(resp.StatusCode, msg)
}

type frameStream struct {
	ctx       context.Context
	body      io.ReadCloser
	scanner   *bufio.Scanner
	serverURL string
	done      bool
}

func (s *frameStream) Recv() (entity.Frame, error) {
	if s.done {
		return entity.Frame{}, io.EOF
	}

	var data bytes.Buffer
	for s.scanner.Scan() {
		line := s.scanner.Text()

		if line == "" {
			if data.Len() == 0 {
				continue
			}
			return s.decode(data.Bytes())
		}
		if v, ok := strings.CutPrefix(line, "data:"); ok {
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(v, " "))
		}
		// event:, id: and comment lines carry nothing for us.
	}

	if err := s.scanner.Err(); err != nil {
		s.done = true
		if s.ctx.Err() != nil {
			return entity.Frame{}, s.ctx.Err()
		}
		return entity.Frame{}, fault.Unreachable(s.serverURL, err)
	}
	if data.Len() > 0 {
		return s.decode(data.Bytes())
	}
	s.done = true
	return entity.Frame{}, io.EOF
}

func (s *frameStream) decode(data []byte) (entity.Frame, error) {
	if string(data) == entity.DoneSentinel {
		s.done = true
		return entity.Frame{}, io.EOF
	}
	var f entity.Frame
	if err := json.Unmarshal(data, &f); err != nil {
		s.done = true
		return entity.Frame{}, &fault.Fault{
			Kind:    fault.ProtocolError,
			Message: "Malformed response from AI server.",
			Err:     fmt.Errorf("decode frame %q: %w", truncate(data, 80), err),
		}
	}
	return f, nil
}

func (s *frameStream) Close() error {
	s.done = true
	return s.body.Close()
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

