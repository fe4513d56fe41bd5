// Package amqp implements the dispatch queue on RabbitMQ.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ankemong/newsnexus-sub000/internal/job"
)

// Config controls the broker connection and queue layout.
type Config struct {
	URL       string
	QueueName string
}

// Queue publishes job descriptors to a durable RabbitMQ queue. Messages
// are persistent, so an accepted enqueue survives broker restarts.
// Delivery to consumers is at-least-once: a redelivered message reaches a
// second worker, which is why status transitions are written defensively
// on the consumer side rather than assumed exactly-once here.
type Queue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	name    string
}

// New dials the broker and declares the durable queue so producers and
// consumers can start in any order.
func New(cfg Config) (*Queue, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("queue.amqp.url is required")
	}
	name := cfg.QueueName
	if name == "" {
		name = "crawl-jobs"
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		closeErr := conn.Close()
		if closeErr != nil {
			return nil, fmt.Errorf("open amqp channel: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	_, err = ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		closeErr := conn.Close()
		if closeErr != nil {
			return nil, fmt.Errorf("declare queue %s: %w (close: %v)", name, err, closeErr)
		}
		return nil, fmt.Errorf("declare queue %s: %w", name, err)
	}
	return &Queue{conn: conn, channel: ch, name: name}, nil
}

// Enqueue publishes one message to the queue. Exactly one publish per
// accepted request; the gateway never retries here, leaving duplicate
// creation to the caller's explicit retry of the whole request.
func (q *Queue) Enqueue(ctx context.Context, msg job.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal queue message: %w", err)
	}
	err = q.channel.PublishWithContext(ctx,
		"",     // default exchange
		q.name, // routing key = queue name
		false,  // mandatory
		false,  // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish job %s: %w", msg.JobID, err)
	}
	return nil
}

// Close shuts down the channel and connection.
func (q *Queue) Close() error {
	if err := q.channel.Close(); err != nil {
		return fmt.Errorf("close amqp channel: %w", err)
	}
	if err := q.conn.Close(); err != nil {
		return fmt.Errorf("close amqp connection: %w", err)
	}
	return nil
}
