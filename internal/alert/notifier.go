// Package alert delivers out-of-band notifications when the Connection
// Manager reaches a state no amount of local retrying can fix: an
// irrecoverable close code, or a ping deadline missed three times running.
// It follows the same multi-sender dispatch and per-sender error
// collection as a typical notify package, with the event-type allowlist
// dropped, since this domain has exactly two alert triggers rather than
// an open set of events to filter between.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Sender is a single notification channel.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier fans a single alert out to every configured Sender.
type Notifier struct {
	senders []Sender
	logger  *slog.Logger
}

// NewNotifier returns a Notifier that delivers to every given Sender. A
// Notifier with no senders is valid and simply drops every Notify call.
func NewNotifier(logger *slog.Logger, senders ...Sender) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		senders: senders,
		logger:  logger.With(slog.String("component", "alert")),
	}
}

// Notify delivers title/message to every sender. A single sender's failure
// does not stop delivery to the rest; their errors are collected and
// returned joined.
func (n *Notifier) Notify(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "alert sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "alert sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("alert: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
