package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/hakimelghazi/matching-core/internal/engine"
	"github.com/hakimelghazi/matching-core/internal/protocol"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes JSON events keyed by instrument, so one instrument's events
// stay ordered on one partition.
type Kafka struct {
	topic string
	w     messageWriter
}

func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		topic: topic,
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (k *Kafka) Name() string { return "kafka:" + k.topic }

func (k *Kafka) Deliver(ctx context.Context, batch []engine.Event) error {
	msgs := make([]kafka.Message, 0, len(batch))
	for _, ev := range batch {
		value, err := protocol.MarshalEvent(ev)
		if err != nil {
			return fmt.Errorf("encode %s event for order %d: %w", ev.Kind, ev.OrderID, err)
		}
		msg := kafka.Message{
			Value: value,
			Headers: []kafka.Header{
				{Key: "kind", Value: []byte(ev.Kind.String())},
			},
		}
		if ev.Instrument != "" {
			msg.Key = []byte(ev.Instrument)
		}
		msgs = append(msgs, msg)
	}
	if err := k.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (k *Kafka) Close() error { return k.w.Close() }
