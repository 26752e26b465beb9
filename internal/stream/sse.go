package stream

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/anstrom/netsweep/internal/scanning"
)

// SSEWriter writes events as server-sent event frames of the form
// "data: <json>\n\n", flushing after every frame.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

// NewSSEWriter wraps w. It fails when w cannot flush, since buffered frames
// would defeat live delivery.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported: response writer does not implement http.Flusher")
	}
	return &SSEWriter{w: w, flusher: flusher}, nil
}

// Start writes the event-stream headers. Send calls it on first use.
func (s *SSEWriter) Start() {
	if s.started {
		return
	}
	s.started = true

	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.flusher.Flush()
}

// Send writes one frame and flushes it to the client.
func (s *SSEWriter) Send(event scanning.Event) error {
	s.Start()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
