// Package memory provides a queue implementation for local development.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ankemong/newsnexus-sub000/internal/job"
)

// Queue is a bounded in-memory queue with context-aware operations. It
// gives up the durability of a real broker, so it is only suitable for
// development and tests.
//
// Shutdown is signalled through a separate done channel; the message
// channel itself is never closed, so a producer racing Close can never
// hit a send on a closed channel.
type Queue struct {
	ch   chan job.Message
	done chan struct{}
	once sync.Once
}

// New constructs a queue with the provided capacity.
func New(capacity int) *Queue {
	return &Queue{
		ch:   make(chan job.Message, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue pushes a message into the queue, failing if the queue is closed
// or the context ends first.
func (q *Queue) Enqueue(ctx context.Context, msg job.Message) error {
	select {
	case <-q.done:
		return errors.New("queue closed")
	default:
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case <-q.done:
		return errors.New("queue closed")
	case q.ch <- msg:
		return nil
	}
}

// Dequeue pops the next message, respecting context cancellation. Buffered
// messages are drained before a closed queue is reported. Only the
// in-process worker used in tests consumes this side.
func (q *Queue) Dequeue(ctx context.Context) (job.Message, error) {
	select {
	case msg := <-q.ch:
		return msg, nil
	default:
	}
	select {
	case <-ctx.Done():
		return job.Message{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case <-q.done:
		return job.Message{}, errors.New("queue closed")
	case msg := <-q.ch:
		return msg, nil
	}
}

// Close marks the queue closed. Safe to call more than once and safe to
// race with in-flight Enqueue calls.
func (q *Queue) Close() error {
	q.once.Do(func() {
		close(q.done)
	})
	return nil
}
