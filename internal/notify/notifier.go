// Package notify publishes settlement events for downstream consumers
// (order fulfilment, customer notifications).
package notify

import (
	"context"
	"log"
	"time"
)

const (
	SubjectKindOrder       = "order"
	SubjectKindChatMessage = "chat_message"
)

type SettledEvent struct {
	EventID   string    `json:"event_id"`
	SubjectID string    `json:"subject_id"`
	Kind      string    `json:"subject_kind"`
	Amount    int64     `json:"amount,omitempty"`
	SettledAt time.Time `json:"settled_at"`
}

type Notifier interface {
	PaymentSettled(ctx context.Context, e SettledEvent) error
}

// LogNotifier is the fallback when no broker is configured.
type LogNotifier struct{}

func (LogNotifier) PaymentSettled(_ context.Context, e SettledEvent) error {
	log.Printf("payment settled subject=%s kind=%s amount=%d", e.SubjectID, e.Kind, e.Amount)
	return nil
}
