package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Rrens/finance-chat/internal/domain"
)

// sseWriter frames chunks as Server-Sent Events. Writes are serialized so
// the keepalive ticker can share the connection with the relay.
type sseWriter struct {
	mu sync.Mutex
	w  http.ResponseWriter
	rc *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	rc := http.NewResponseController(w)
	// the server write timeout would cut long answers short
	_ = rc.SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	return &sseWriter{w: w, rc: rc}
}

// Send writes one data frame and flushes it
func (s *sseWriter) Send(chunk domain.StreamChunk) error {
	payload, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	return s.write("data: %s\n\n", payload)
}

func (s *sseWriter) comment(text string) error {
	return s.write(": %s\n\n", text)
}

func (s *sseWriter) write(format string, arg any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintf(s.w, format, arg); err != nil {
		return err
	}
	return s.rc.Flush()
}

// keepAlive sends a comment frame every interval until ctx is done
func (s *sseWriter) keepAlive(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.comment("keepalive"); err != nil {
				return
			}
		}
	}
}
