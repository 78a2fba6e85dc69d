package telemetry

import (
	"encoding/json"
	"sync"

	"ai-assistant-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// Recorder is the single process-wide telemetry service: a capped ring
// buffer of QueryEvents plus an optional bus publisher for subscribers
// (NATS forwarder, log sinks). Appends are serialized by a mutex; bus
// publishing happens off the caller's goroutine so the retrieval and
// streaming path never blocks on a slow subscriber.
type Recorder struct {
	mu       sync.Mutex
	events   []QueryEvent
	capacity int

	publisher message.Publisher
	logger    logger.ILogger
}

// NewRecorder creates a recorder. publisher may be nil when no bus is wired.
func NewRecorder(capacity int, publisher message.Publisher, log logger.ILogger) *Recorder {
	if capacity <= 0 {
		capacity = 300
	}
	return &Recorder{
		events:    make([]QueryEvent, 0, capacity),
		capacity:  capacity,
		publisher: publisher,
		logger:    log,
	}
}

// Record appends one event, evicting the oldest once the cap is exceeded.
func (r *Recorder) Record(event QueryEvent) {
	r.mu.Lock()
	r.events = append(r.events, event)
	if len(r.events) > r.capacity {
		r.events = r.events[len(r.events)-r.capacity:]
	}
	r.mu.Unlock()

	if r.publisher == nil {
		return
	}

	go func() {
		payload, err := json.Marshal(event)
		if err != nil {
			r.logger.Error("Telemetry", "Failed to marshal query event", map[string]interface{}{"error": err.Error()})
			return
		}
		msg := message.NewMessage(uuid.NewString(), payload)
		if err := r.publisher.Publish(TopicQueryEvents, msg); err != nil {
			r.logger.Warn("Telemetry", "Failed to publish query event", map[string]interface{}{"error": err.Error()})
		}
	}()
}

// Recent returns up to limit most-recent events, newest first.
func (r *Recorder) Recent(limit int) []QueryEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 || limit > len(r.events) {
		limit = len(r.events)
	}

	out := make([]QueryEvent, 0, limit)
	for i := len(r.events) - 1; i >= len(r.events)-limit; i-- {
		out = append(out, r.events[i])
	}
	return out
}

// Len reports how many events are currently retained.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
