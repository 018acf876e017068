package mail

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/iliyamo/cinema-management/internal/config"
)

// captureSender routes messages through gomail.SendFunc instead of SMTP.
func captureSender(t *testing.T, fail error) (*Sender, *[]string, *bytes.Buffer) {
	t.Helper()
	s := NewSender(config.MailConfig{Host: "localhost", Port: 25, From: "cinema@example.com"})
	var to []string
	var raw bytes.Buffer
	fn := gomail.SendFunc(func(from string, rcpt []string, msg io.WriterTo) error {
		if fail != nil {
			return fail
		}
		assert.Equal(t, "cinema@example.com", from)
		to = append(to, rcpt...)
		_, err := msg.WriteTo(&raw)
		return err
	})
	s.send = func(m ...*gomail.Message) error { return gomail.Send(fn, m...) }
	return s, &to, &raw
}

func TestSendBuildsMessage(t *testing.T) {
	s, to, raw := captureSender(t, nil)
	qr := filepath.Join(t.TempDir(), "qr.png")
	require.NoError(t, os.WriteFile(qr, []byte("png"), 0o644))

	err := s.Send(context.Background(), Message{
		To:          "ana@example.com",
		Subject:     "Your receipt",
		Body:        "Thanks",
		Attachments: []string{qr, filepath.Join(t.TempDir(), "missing.png")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ana@example.com"}, *to)
	assert.Contains(t, raw.String(), "Subject: Your receipt")
	assert.Contains(t, raw.String(), `filename="qr.png"`)
	assert.NotContains(t, raw.String(), "missing.png")
}

func TestSendErrors(t *testing.T) {
	boom := errors.New("relay refused")
	s, _, _ := captureSender(t, boom)
	err := s.Send(context.Background(), Message{To: "ana@example.com", Subject: "x", Body: "y"})
	assert.ErrorIs(t, err, boom)

	err = s.Send(context.Background(), Message{Subject: "x"})
	assert.ErrorContains(t, err, "empty recipient")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, Message{To: "ana@example.com"}), context.Canceled)
}
