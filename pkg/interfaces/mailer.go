package interfaces

import "context"

// Mail is the payload handed to the mail collaborator. Shape is
// intentionally loose (subject/body/to plus opaque data) — the core never
// inspects mail content, only relays it.
type Mail struct {
	To      string
	Subject string
	Body    string
	Data    map[string]interface{}
}

// Mailer is the "Mail" collaborator: send(mail, callback). Delivery is
// fire-and-forget from the scheduler's perspective; the mail layer owns
// its own retries.
type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}
