package config

import "time"

// BrokerConfig points at the RabbitMQ queue that carries receipt requests.
// An empty URL disables receipt delivery.
type BrokerConfig struct {
	URL            string
	ReceiptQueue   string
	PublishTimeout time.Duration
	MaxRetries     int
}

// LoadBrokerConfig reads RABBITMQ_URL (AMQP_URL is accepted as an alias)
// and the receipt queue settings.
func LoadBrokerConfig() BrokerConfig {
	return BrokerConfig{
		URL:            envStr("RABBITMQ_URL", envStr("AMQP_URL", "")),
		ReceiptQueue:   envStr("RECEIPT_QUEUE", "invoice.receipt"),
		PublishTimeout: envDur("RECEIPT_PUBLISH_TIMEOUT", 5*time.Second),
		MaxRetries:     envInt("RECEIPT_MAX_RETRIES", 5),
	}
}

// MailConfig configures the SMTP sender used for purchase receipts.
type MailConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	From       string
	Attachment string // optional file attached to every receipt (e.g. a payment QR)
	Currency   string
}

func LoadMailConfig() MailConfig {
	return MailConfig{
		Host:       envStr("SMTP_HOST", "localhost"),
		Port:       envInt("SMTP_PORT", 587),
		User:       envStr("SMTP_USER", ""),
		Password:   envStr("SMTP_PASS", ""),
		From:       envStr("MAIL_FROM", "no-reply@cinema.local"),
		Attachment: envStr("RECEIPT_ATTACHMENT", ""),
		Currency:   envStr("RECEIPT_CURRENCY", "Bs."),
	}
}
