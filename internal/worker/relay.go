package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const pushTimeout = 10 * time.Second

// MessageReader reads auth events from a broker (implemented by *kafka.Reader).
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// EventPusher ships one raw auth event to log storage (implemented by *loki.Client).
type EventPusher interface {
	PushEventJSON(ctx context.Context, raw []byte) error
}

// NewKafkaReader returns a consumer-group reader for the auth events topic.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})
}

// RunRelay copies every event from r to p until ctx is done. Read and push failures are logged;
// a failed push does not stop the relay.
func RunRelay(ctx context.Context, r MessageReader, p EventPusher, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("relay: read failed", "error", err)
			continue
		}
		pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
		if err := p.PushEventJSON(pushCtx, msg.Value); err != nil {
			logger.Warn("relay: push failed", "offset", msg.Offset, "error", err)
		}
		cancel()
	}
}
