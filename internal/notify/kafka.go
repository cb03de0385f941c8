package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const settlementTopic = "payment-settled"

type KafkaNotifier struct {
	writer *kafka.Writer
}

func NewKafkaNotifier(brokers ...string) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  settlementTopic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaNotifier{writer: w}
}

func (n *KafkaNotifier) PaymentSettled(ctx context.Context, e SettledEvent) error {
	if e.EventID == "" {
		e.EventID = uuid.New().String()
	}
	if e.SettledAt.IsZero() {
		e.SettledAt = time.Now()
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal settlement event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(e.SubjectID), // subject id for per-subject ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("payment.settled")},
		},
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish settlement event: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
