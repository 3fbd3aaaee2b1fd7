package outbox

import (
	"time"
)

// OutboxMessage is a domain event waiting to be published to RabbitMQ. Rows
// are written in the same transaction as the state change they describe and
// deleted once the publisher worker delivers them.
type OutboxMessage struct {
	ID           int64
	QueueName    string
	ExchangeName string
	RoutingKey   string
	Payload      []byte
	ContentType  string
	RetryCount   int
	MaxRetries   int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	NextRetryAt  time.Time
}
