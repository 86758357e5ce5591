package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sirupsen/logrus"
)

// Mailer delivers one message per call over SMTP. It satisfies the fan-out
// engine's Channel interface; the engine owns retries, so a failed send is
// just returned.
type Mailer struct {
	addr string
	auth smtp.Auth
	from string
}

var Client *Mailer

func Setup(host string, port int, username, password, from string) {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	Client = &Mailer{
		addr: fmt.Sprintf("%s:%d", host, port),
		auth: auth,
		from: from,
	}
	logrus.WithField("smtp", Client.addr).Info("Mailer configured")
}

func (m *Mailer) Deliver(ctx context.Context, address, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", address)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	return smtp.SendMail(m.addr, m.auth, m.from, []string{address}, []byte(msg.String()))
}
