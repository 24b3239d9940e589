// Package progress implements the ordered, per-run progress channel
// that workflow steps emit into and HTTP handlers stream out as
// server-sent events.
package progress

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sitepilot/control-plane/pkg/models"
)

// Sink receives progress events for a single workflow run. Emit must
// not block the caller for more than 100ms; a slow consumer has its
// event dropped rather than stalling the workflow.
type Sink interface {
	Emit(event models.ProgressEvent) (delivered bool)
	// Closed reports whether the sink has been closed by its consumer,
	// signaling the workflow should cancel at its next suspension
	// point.
	Closed() bool
}

const emitTimeout = 100 * time.Millisecond

// Channel is the default Sink implementation: a buffered channel fed by
// Emit and drained by whatever is consuming (typically ServeSSE).
type Channel struct {
	mu      sync.Mutex
	closed  bool
	events  chan models.ProgressEvent
	done    chan struct{}
	dropped int
}

// NewChannel creates a Channel with the given buffer size.
func NewChannel(buffer int) *Channel {
	return &Channel{
		events: make(chan models.ProgressEvent, buffer),
		done:   make(chan struct{}),
	}
}

// Emit implements Sink.
func (c *Channel) Emit(event models.ProgressEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.events <- event:
		return true
	case <-time.After(emitTimeout):
		c.dropped++
		log.Warn().Str("run_id", event.RunID).Str("step", event.Step).Msg("progress event dropped: slow consumer")
		return false
	case <-c.done:
		return false
	}
}

// Closed implements Sink.
func (c *Channel) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close marks the channel closed: later Emits are refused, the events
// channel is closed so consumers stop once they have drained it, and
// Closed reports true so an in-flight workflow cancels. Closing twice
// is a no-op.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	close(c.events)
}

// Events returns the channel of events to range over.
func (c *Channel) Events() <-chan models.ProgressEvent { return c.events }

// Dropped returns the number of events dropped due to a slow consumer.
func (c *Channel) Dropped() int { return c.dropped }

// ServeSSE streams ch's events to w as server-sent events until ch is
// closed or the request context is canceled. It flushes after every
// event so consumers see updates immediately.
func ServeSSE(w http.ResponseWriter, r *http.Request, ch *Channel) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case event, ok := <-ch.Events():
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if _, err := w.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			ch.Close()
			return
		}
	}
}
