// Package broker carries commands to workers and responses back over
// RabbitMQ. Commands fan out through a direct exchange routed by group name;
// responses arrive on a single queue consumed with manual acknowledgement.
package broker

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/MatweyL/Potok/internal/config"
	"github.com/MatweyL/Potok/internal/shared/logging"
)

// Connection wraps the AMQP connection with startup retries.
type Connection struct {
	conn   *amqp.Connection
	logger logging.Logger
}

// Connect dials the broker, retrying up to cfg.ConnectMaxAttempts with
// cfg.ConnectRetryTimeout between attempts.
func Connect(ctx context.Context, cfg config.BrokerConfig) (*Connection, error) {
	logger := logging.NewComponentLogger("Broker")

	var lastErr error
	for attempt := 1; attempt <= cfg.ConnectMaxAttempts; attempt++ {
		conn, err := amqp.Dial(cfg.URI)
		if err == nil {
			logger.Info("connected on attempt %d", attempt)
			return &Connection{conn: conn, logger: logger}, nil
		}
		lastErr = err
		logger.Warn("connect attempt %d/%d failed: %v", attempt, cfg.ConnectMaxAttempts, err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.ConnectRetryTimeout):
		}
	}
	return nil, fmt.Errorf("connect to broker after %d attempts: %w", cfg.ConnectMaxAttempts, lastErr)
}

// Channel opens a new AMQP channel.
func (c *Connection) Channel() (*amqp.Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, nil
}

// Close closes the underlying connection.
func (c *Connection) Close() error {
	if c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	return c.conn.Close()
}
