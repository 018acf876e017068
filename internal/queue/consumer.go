// Package queue carries receipt requests from the purchase workflow to
// the mail sender over RabbitMQ.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-management/internal/mail"
)

// Mailer delivers one email.
type Mailer interface {
	Send(ctx context.Context, m mail.Message) error
}

// ConsumerOptions configures a Consumer.
type ConsumerOptions struct {
	URL        string
	Queue      string
	Currency   string
	Attachment string // sent with every receipt when set
	MaxRetries int
	Prefetch   int
}

// Consumer reads receipt requests and mails them.  Deliveries are acked
// manually: a message is acked once sent and rejected without requeue
// when it is malformed or still failing after MaxRetries attempts.
type Consumer struct {
	opts          ConsumerOptions
	mailer        Mailer
	retryInterval time.Duration
	log           *logrus.Entry
}

// NewConsumer returns a Consumer sending through mailer.
func NewConsumer(opts ConsumerOptions, mailer Mailer) *Consumer {
	if opts.Prefetch <= 0 {
		opts.Prefetch = 10
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Consumer{
		opts:          opts,
		mailer:        mailer,
		retryInterval: time.Second,
		log:           logrus.WithField("component", "receipt-consumer"),
	}
}

// Run consumes until ctx is cancelled, reconnecting with exponential
// backoff whenever the broker connection is lost.  It returns nil on
// cancellation.
func (c *Consumer) Run(ctx context.Context) error {
	reconnect := backoff.NewExponentialBackOff()
	reconnect.MaxInterval = 30 * time.Second
	reconnect.MaxElapsedTime = 0
	for {
		conn, err := amqp.Dial(c.opts.URL)
		if err == nil {
			reconnect.Reset()
			err = c.consume(ctx, conn)
			_ = conn.Close()
			if ctx.Err() != nil {
				return nil
			}
		}
		wait := reconnect.NextBackOff()
		c.log.WithError(err).WithField("retry_in", wait).Warn("broker unavailable")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.opts.Prefetch, 0, false); err != nil {
		c.log.WithError(err).Warn("set qos")
	}
	if _, err := ch.QueueDeclare(c.opts.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.opts.Queue, err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.opts.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.opts.Queue, err)
	}
	c.log.WithField("queue", c.opts.Queue).Info("consuming receipt requests")

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr == nil {
				return errors.New("connection closed")
			}
			return amqpErr
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(ctx, d.Body); err != nil {
				c.log.WithError(err).WithField("message_id", d.MessageId).Error("receipt dropped")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// handle mails one receipt, retrying transient send failures.
func (c *Consumer) handle(ctx context.Context, body []byte) error {
	var ev ReceiptRequested
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("decode receipt: %w", err)
	}
	if strings.TrimSpace(ev.Email) == "" {
		return fmt.Errorf("receipt for invoice %d has no email", ev.InvoiceID)
	}
	subject, text := RenderReceipt(ev, c.opts.Currency)
	msg := mail.Message{To: ev.Email, Subject: subject, Body: text}
	if c.opts.Attachment != "" {
		msg.Attachments = []string{c.opts.Attachment}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.opts.MaxRetries)), ctx)
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := c.mailer.Send(ctx, msg)
		if err != nil {
			c.log.WithError(err).WithFields(logrus.Fields{"invoice_id": ev.InvoiceID, "attempt": attempt}).Warn("send receipt")
		}
		return err
	}, policy)
	if err != nil {
		return fmt.Errorf("send receipt for invoice %d: %w", ev.InvoiceID, err)
	}
	c.log.WithField("invoice_id", ev.InvoiceID).Info("receipt sent")
	return nil
}
