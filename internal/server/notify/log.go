package notify

import (
	"context"

	"github.com/dmitrijs2005/idkeeper/internal/logging"
)

// LogNotifier writes messages to the logger instead of delivering them.
// Development only: bodies carry live secrets.
type LogNotifier struct {
	log logging.Logger
}

func NewLogNotifier(log logging.Logger) *LogNotifier {
	return &LogNotifier{log: log.With("component", "notify.log")}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	n.log.Info(ctx, "outbound email", "kind", msg.Kind, "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}

func (n *LogNotifier) Close() error { return nil }
