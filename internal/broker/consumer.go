package broker

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/MatweyL/Potok/internal/config"
	scherrors "github.com/MatweyL/Potok/internal/shared/errors"
	"github.com/MatweyL/Potok/internal/shared/logging"
)

// consumeChannel is the slice of amqp.Channel the consumer uses.
type consumeChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Handler processes one response body.
type Handler func(ctx context.Context, body []byte) error

// Consumer reads worker responses off the response queue and feeds them to
// the ingestor. The handler's error kind decides the fate of the message:
// malformed or unknown-reference responses are acknowledged and dropped,
// transient store failures are requeued.
type Consumer struct {
	ch       consumeChannel
	queue    string
	prefetch int
	handler  Handler
	logger   logging.Logger
}

// NewConsumer declares the response queue and returns a consumer for it.
func NewConsumer(ch consumeChannel, cfg config.BrokerConfig, handler Handler) (*Consumer, error) {
	if _, err := ch.QueueDeclare(cfg.ResponseQueue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", cfg.ResponseQueue, err)
	}
	return &Consumer{
		ch:       ch,
		queue:    cfg.ResponseQueue,
		prefetch: cfg.PrefetchCount,
		handler:  handler,
		logger:   logging.NewComponentLogger("ResponseConsumer"),
	}, nil
}

// Run consumes until ctx is cancelled or the delivery channel closes. A
// fatal store error stops consumption and is returned.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	c.logger.Info("consuming %s with prefetch %d", c.queue, c.prefetch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel for %s closed", c.queue)
			}
			if err := c.handle(ctx, delivery); err != nil {
				return err
			}
		}
	}
}

func (c *Consumer) handle(ctx context.Context, delivery amqp.Delivery) error {
	err := c.handler(ctx, delivery.Body)
	if err == nil {
		return delivery.Ack(false)
	}

	switch scherrors.KindOf(err) {
	case scherrors.KindResponseMalformed, scherrors.KindUnknownReference:
		c.logger.Warn("dropping response: %v", err)
		return delivery.Ack(false)
	case scherrors.KindStoreFatal:
		// keep the message for the next process
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			c.logger.Error("nack after fatal error failed: %v", nackErr)
		}
		return err
	default:
		c.logger.Warn("requeueing response: %v", err)
		return delivery.Nack(false, true)
	}
}
