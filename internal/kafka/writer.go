package kafka

import (
	"context"
	"time"

	k "github.com/segmentio/kafka-go"
)

type Writer struct {
	w *k.Writer
}

// NewWriter returns an async writer; WriteMessages only queues.
func NewWriter(brokers []string, topic string) *Writer {
	w := &k.Writer{
		Addr:                   k.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &k.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           k.RequireOne,
		Async:                  true,
		AllowAutoTopicCreation: true,
	}
	return &Writer{w: w}
}

func (w *Writer) Close() error { return w.w.Close() }

func (w *Writer) Publish(ctx context.Context, key string, value []byte) error {
	return w.w.WriteMessages(ctx, k.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	})
}
