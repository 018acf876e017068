// Package mail delivers outgoing email over SMTP.
package mail

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/iliyamo/cinema-management/internal/config"
)

// Message is a plain-text email.  Attachments are file paths.
type Message struct {
	To          string
	Subject     string
	Body        string
	Attachments []string
}

// Sender sends messages through an SMTP relay.
type Sender struct {
	from string
	send func(m ...*gomail.Message) error
	log  *logrus.Entry
}

// NewSender returns a Sender using the relay described by cfg.  Each Send
// opens its own SMTP session.
func NewSender(cfg config.MailConfig) *Sender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	return &Sender{from: cfg.From, send: d.DialAndSend, log: logrus.WithField("component", "mail")}
}

func (s *Sender) build(m Message) (*gomail.Message, error) {
	if m.To == "" {
		return nil, fmt.Errorf("mail: empty recipient")
	}
	gm := gomail.NewMessage()
	gm.SetHeader("From", s.from)
	gm.SetHeader("To", m.To)
	gm.SetHeader("Subject", m.Subject)
	gm.SetBody("text/plain", m.Body)
	for _, path := range m.Attachments {
		if _, err := os.Stat(path); err != nil {
			// a missing attachment should not block the message
			s.log.WithError(err).WithField("path", path).Warn("skip attachment")
			continue
		}
		gm.Attach(path)
	}
	return gm, nil
}

// Send delivers m.  The SMTP dialogue itself is not cancellable; ctx is
// only checked before dialing.
func (s *Sender) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	gm, err := s.build(m)
	if err != nil {
		return err
	}
	if err := s.send(gm); err != nil {
		return fmt.Errorf("send mail to %s: %w", m.To, err)
	}
	return nil
}
