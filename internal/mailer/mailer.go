// Package mailer implements interfaces.Mailer over net/smtp. No library in
// the dependency corpus covers outbound mail, so this is the one ambient
// concern built directly on the standard library rather than a third-party
// client; see DESIGN.md for the justification.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"switchboard/internal/logging"
	"switchboard/pkg/interfaces"

	"go.uber.org/zap"
)

// SMTPMailer sends mail through a configured relay. An empty Host makes
// Send a no-op that only logs, matching local/dev deployments that have no
// relay configured.
type SMTPMailer struct {
	host string
	port int
	from string
	auth smtp.Auth
}

// New constructs an SMTPMailer. auth may be nil for relays that accept
// unauthenticated local delivery.
func New(host string, port int, from string, auth smtp.Auth) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, from: from, auth: auth}
}

var _ interfaces.Mailer = (*SMTPMailer)(nil)

// Send delivers mail via net/smtp.SendMail. context cancellation is not
// honored mid-send: net/smtp has no context-aware entry point, so a caller
// that needs a hard deadline must enforce it by timing out Send from
// outside. The scheduler's circuit breaker sets no per-call deadline; it
// only stops calling Send after repeated failures.
func (m *SMTPMailer) Send(ctx context.Context, mail interfaces.Mail) error {
	if m.host == "" {
		logging.L().Info("mailer: no relay configured, dropping message",
			logging.Email(mail.To), zap.String("subject", mail.Subject))
		return nil
	}

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	msg := buildMessage(m.from, mail)
	if err := smtp.SendMail(addr, m.auth, m.from, []string{mail.To}, msg); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return nil
}

func buildMessage(from string, mail interfaces.Mail) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", mail.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mail.Subject)
	b.WriteString("\r\n")
	b.WriteString(mail.Body)
	return []byte(b.String())
}
