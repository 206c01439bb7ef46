package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the notifier uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes messages to a topic for a mail relay to consume.
// The record key is the recipient address.
type KafkaNotifier struct {
	w   messageWriter
	now func() time.Time
}

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return newKafkaNotifier(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
	})
}

func newKafkaNotifier(w messageWriter) *KafkaNotifier {
	return &KafkaNotifier{w: w, now: time.Now}
}

func (n *KafkaNotifier) Send(ctx context.Context, msg Message) error {
	value, err := encode(msg, n.now())
	if err != nil {
		return err
	}

	err = n.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.To),
		Value: value,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(msg.Kind)},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.w.Close()
}
