// Package notify delivers outbound account mail (verification links, MFA
// codes, reset links) through a configurable sink: the log, SMTP, a Kafka
// topic, a Redis stream or Amazon SES.
package notify

import (
	"context"
	"encoding/json"
	"time"
)

// Kind classifies a message for downstream consumers.
type Kind string

const (
	KindVerification  Kind = "email_verification"
	KindMfaCode       Kind = "mfa_code"
	KindPasswordReset Kind = "password_reset"
)

// Message is a single outbound email.
type Message struct {
	Kind    Kind
	To      string
	Subject string
	Body    string
}

// Notifier sends messages. Send is synchronous: a nil error means the sink
// accepted the message.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

// envelope is the JSON form published to Kafka and Redis.
type envelope struct {
	Kind    Kind      `json:"kind"`
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sentAt"`
}

func encode(msg Message, now time.Time) ([]byte, error) {
	return json.Marshal(envelope{
		Kind:    msg.Kind,
		To:      msg.To,
		Subject: msg.Subject,
		Body:    msg.Body,
		SentAt:  now.UTC(),
	})
}
