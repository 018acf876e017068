package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher sends receipt requests to a durable queue.  The connection is
// opened lazily and reopened after the broker drops it.
type Publisher struct {
	url   string
	queue string
	log   *logrus.Entry

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns a Publisher for the given broker URL and queue.
func NewPublisher(url, queue string) *Publisher {
	return &Publisher{url: url, queue: queue, log: logrus.WithField("component", "receipt-publisher")}
}

// channel returns an open channel, dialing when needed.  p.mu must be held.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.closeLocked()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", p.queue, err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

// PublishReceipt publishes ev as a persistent JSON message.
func (p *Publisher) PublishReceipt(ctx context.Context, ev ReceiptRequested) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channel()
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    fmt.Sprintf("invoice-%d", ev.InvoiceID),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		// drop the channel so the next publish reconnects
		p.closeLocked()
		return fmt.Errorf("publish receipt: %w", err)
	}
	p.log.WithField("invoice_id", ev.InvoiceID).Debug("receipt queued")
	return nil
}

func (p *Publisher) closeLocked() {
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	p.ch, p.conn = nil, nil
	if err := errors.Join(errs...); err != nil && !errors.Is(err, amqp.ErrClosed) {
		p.log.WithError(err).Debug("close broker connection")
	}
}

// Close releases the broker connection.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}
