// Package mailer sends the two notification mails the service knows:
// share notices and password resets. Delivery is best effort; failures
// are logged and never surface to the request that triggered them.
package mailer

import (
	"fmt"
	"strings"
	"time"

	mail "gopkg.in/mail.v2"

	"github.com/marque-app/marque/internal/domain"
	"github.com/marque-app/marque/internal/logger"
)

const dialTimeout = 10 * time.Second

// Mailer wraps an SMTP dialer. A nil *Mailer is valid and drops every
// message, which is how deployments without SMTP run.
type Mailer struct {
	dialer    *mail.Dialer
	from      string
	publicURL string
	log       logger.Logger
}

func New(host string, port int, username, password, from, publicURL string, log logger.Logger) *Mailer {
	dialer := mail.NewDialer(host, port, username, password)
	dialer.Timeout = dialTimeout
	return &Mailer{
		dialer:    dialer,
		from:      from,
		publicURL: strings.TrimRight(publicURL, "/"),
		log:       log,
	}
}

// ShareNotice tells each recipient that owner shared an item with
// them. Intended to be called in its own goroutine after the share
// rows are committed.
func (m *Mailer) ShareNotice(owner *domain.User, recipients []domain.User, kind, title string) {
	if m == nil {
		return
	}
	subject := fmt.Sprintf("%s shared a %s with you", owner.DisplayName, kind)
	body := fmt.Sprintf(
		"%s (%s) shared the %s %q with you.\n\nOpen %s to see it.\n",
		owner.DisplayName, owner.Email, kind, title, m.publicURL,
	)
	for _, rcpt := range recipients {
		m.send(rcpt.Email, subject, body)
	}
}

// PasswordReset mails a one-time reset link.
func (m *Mailer) PasswordReset(user *domain.User, token string) {
	if m == nil {
		return
	}
	link := fmt.Sprintf("%s/reset?token=%s", m.publicURL, token)
	body := fmt.Sprintf(
		"A password reset was requested for your account.\n\n%s\n\nThe link expires; if you did not ask for it, ignore this mail.\n",
		link,
	)
	m.send(user.Email, "Password reset", body)
}

func (m *Mailer) send(to, subject, body string) {
	msg := mail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		m.log.Error("failed to send mail",
			logger.String("to", to),
			logger.String("subject", subject),
			logger.Error(err),
		)
		return
	}
	m.log.Debug("mail sent",
		logger.String("to", to),
		logger.String("subject", subject),
	)
}
