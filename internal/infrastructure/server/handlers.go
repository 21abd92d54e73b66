package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"zenix/internal/domain/entity"
	"zenix/internal/domain/fault"
	"zenix/internal/usecase/chat"
)

const (
	msgInvalidBody   = "Invalid JSON body"
	msgBodyTooLarge  = "Request body too large"
	msgInternalError = "An error occurred while streaming the response."
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Zenix AI Server is running",
	})
}

func (s *Server) handleAIHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"service":   "ai",
		"model":     s.streamer.Model(),
		"timestamp": s.now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	var req entity.ChatRequest
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	frames, err := s.streamer.Stream(r.Context(), req)
	if err != nil {
		status, msg := errorResponse(err)
		s.logger.Warn("Stream rejected", "status", status, "error", err)
		writeError(w, status, msg)
		return
	}
	defer frames.Close()

	sse := newSSEWriter(w)
	s.metrics.StreamsActive.Inc()
	defer s.metrics.StreamsActive.Dec()

	for {
		frame, err := frames.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if r.Context().Err() != nil {
				s.logger.Debug("Client went away", "error", err)
				return
			}
			s.logger.Error("Stream failed", "error", err)
			_ = sse.frame(entity.Frame{Type: entity.FrameError, ErrorText: fault.Classify(err).UserMessage()})
			break
		}
		if err := sse.frame(frame); err != nil {
			s.logger.Debug("Write failed, dropping stream", "error", err)
			return
		}
		s.metrics.FramesSent.WithLabelValues(string(frame.Type)).Inc()
	}
	_ = sse.done()
}

// errorResponse maps a pre-stream failure onto the status and message the
// panel expects.
func errorResponse(err error) (int, string) {
	if errors.Is(err, chat.ErrInvalidRequest) {
		return http.StatusBadRequest, strings.TrimPrefix(err.Error(), chat.ErrInvalidRequest.Error()+": ")
	}
	var f *fault.Fault
	if errors.As(err, &f) {
		return f.HTTPStatus(), f.UserMessage()
	}
	return http.StatusInternalServerError, msgInternalError
}

type sseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	return &sseWriter{w: w, rc: http.NewResponseController(w)}
}

func (s *sseWriter) frame(f entity.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return s.write(data)
}

func (s *sseWriter) done() error {
	return s.write([]byte(entity.DoneSentinel))
}

func (s *sseWriter) write(data []byte) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
