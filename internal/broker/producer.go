package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/MatweyL/Potok/internal/config"
	scherrors "github.com/MatweyL/Potok/internal/shared/errors"
	"github.com/MatweyL/Potok/internal/shared/logging"
)

// publishChannel is the slice of amqp.Channel the producer uses.
type publishChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Producer publishes commands to the command exchange. Transient publish
// failures are retried with a sleep; once retries are exhausted the error is
// returned tagged so the dispatch transaction rolls back and the runs stay
// WAITING for the next tick.
type Producer struct {
	ch           publishChannel
	exchange     string
	maxRetries   int
	retryTimeout time.Duration
	sleep        func(time.Duration)
	logger       logging.Logger
}

// NewProducer declares the exchange and returns a producer bound to it.
func NewProducer(ch publishChannel, cfg config.BrokerConfig) (*Producer, error) {
	if err := ch.ExchangeDeclare(cfg.Exchange, cfg.ExchangeType, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	return &Producer{
		ch:           ch,
		exchange:     cfg.Exchange,
		maxRetries:   cfg.PublishMaxRetries,
		retryTimeout: cfg.PublishRetryTimeout,
		sleep:        time.Sleep,
		logger:       logging.NewComponentLogger("CommandProducer"),
	}, nil
}

// Publish sends one persistent JSON message routed by routingKey.
func (p *Producer) Publish(ctx context.Context, routingKey string, body []byte) error {
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			p.sleep(p.retryTimeout)
		}
		if lastErr = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); lastErr == nil {
			return nil
		}
		var amqpErr *amqp.Error
		if errors.As(lastErr, &amqpErr) && !amqpErr.Recover {
			return scherrors.BrokerFatal(fmt.Sprintf("publish to %s", routingKey), lastErr)
		}
		p.logger.Warn("publish to %s attempt %d/%d failed: %v", routingKey, attempt+1, p.maxRetries+1, lastErr)
	}
	return scherrors.BrokerTransient(fmt.Sprintf("publish to %s", routingKey), lastErr)
}
