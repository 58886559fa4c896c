// Package queue publishes domain events to an AMQP broker for downstream consumers.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chainhire/internal/middleware"
	"chainhire/internal/observability"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// Publisher puts JSON events on one durable queue. A nil *Publisher is valid and drops everything.
type Publisher struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

// Dial connects to the broker and declares the durable events queue.
func Dial(url, queueName string) (*Publisher, error) {
	if url == "" {
		return nil, errors.New("amqp url is empty")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to amqp broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queueName, err)
	}

	middleware.Logger.Info("connected to amqp broker", "queue", q.Name)
	return &Publisher{conn: conn, channel: ch, queue: q.Name}, nil
}

// Enabled reports whether events are actually delivered.
func (p *Publisher) Enabled() bool {
	return p != nil && p.channel != nil
}

// Publish sends body tagged with eventType. Delivery is persistent.
func (p *Publisher) Publish(ctx context.Context, eventType string, body []byte) error {
	if !p.Enabled() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	err := p.channel.PublishWithContext(
		ctx,
		"",      // default exchange
		p.queue, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         eventType,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	p.mu.Unlock()

	if err != nil {
		observability.QueuePublishes.WithLabelValues("error").Inc()
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	observability.QueuePublishes.WithLabelValues("ok").Inc()
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	if !p.Enabled() {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.channel.Close(), p.conn.Close())
}
