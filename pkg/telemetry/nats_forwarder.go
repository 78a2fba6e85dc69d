package telemetry

import (
	"context"
	"fmt"
	"time"

	"ai-assistant-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSForwarder drains the in-process telemetry bus and republishes query
// events to a JetStream stream for offline analysis. Entirely optional:
// when NATS is not configured the recorder still keeps its ring buffer.
type NATSForwarder struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger logger.ILogger
}

// NewNATSForwarder connects to NATS and ensures the EVENTS stream exists.
func NewNATSForwarder(url string, log logger.ILogger) (*NATSForwarder, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     "EVENTS",
		Subjects: []string{"events.>"},
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		log.Warn("Telemetry", "Failed to ensure stream EVENTS", map[string]interface{}{"error": err.Error()})
		// Don't fail hard here, maybe it already exists or NATS isn't ready
	}

	return &NATSForwarder{nc: nc, js: js, logger: log}, nil
}

// Run subscribes to the bus topic and forwards until ctx is cancelled.
func (f *NATSForwarder) Run(ctx context.Context, subscriber message.Subscriber) error {
	messages, err := subscriber.Subscribe(ctx, TopicQueryEvents)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicQueryEvents, err)
	}

	go func() {
		for msg := range messages {
			if _, err := f.js.Publish(ctx, "events.query", msg.Payload); err != nil {
				f.logger.Warn("Telemetry", "Failed to forward query event", map[string]interface{}{"error": err.Error()})
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}()

	return nil
}

// Close closes the NATS connection.
func (f *NATSForwarder) Close() {
	if f.nc != nil {
		f.nc.Close()
	}
}
