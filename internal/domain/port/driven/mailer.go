package driven

import "context"

// Email is an outbound message. HTML and Text carry the same content.
type Email struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Mailer defines the driven port for e-mail transport. Send failures must be
// returned, never swallowed.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}
