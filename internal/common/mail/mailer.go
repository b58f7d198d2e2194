// Package mail provides the outbound mail transports used to deliver
// interview reminders. The core treats a transport as an opaque
// collaborator: one send per call, any error counts as delivery failure.
package mail

import "context"

// Mailer sends a single rendered message to one recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}
