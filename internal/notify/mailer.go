package notify

import "context"

// Mailer is the notification hook invoked after a successful create. It is
// best-effort: callers never fail on a Send error.
type Mailer interface {
	Send(ctx context.Context, subject, body string) error
}

// NoopMailer discards all notifications. Used when no broker is configured.
type NoopMailer struct{}

func (NoopMailer) Send(context.Context, string, string) error { return nil }
