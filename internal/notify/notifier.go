package notify

import (
	"context"
	"log/slog"
)

// Kind names the message being delivered so senders can pick a template.
type Kind string

const (
	KindEmailVerification Kind = "email_verification"
	KindPasswordReset     Kind = "password_reset"
	KindMagicLink         Kind = "magic_link"
)

// Sender delivers a single-use link to a recipient. Implementations must be
// safe for concurrent use. Delivery is fire-and-forget from the caller's
// perspective: the auth flows log failures but do not fail on them.
type Sender interface {
	Send(ctx context.Context, kind Kind, recipient, link string) error
}

// LogSender writes the link to the structured log instead of delivering it.
// Used in development and tests.
type LogSender struct {
	Logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{Logger: logger}
}

func (s *LogSender) Send(_ context.Context, kind Kind, recipient, link string) error {
	s.Logger.Info("notification link issued",
		"kind", string(kind),
		"recipient", recipient,
		"link", link,
	)
	return nil
}
