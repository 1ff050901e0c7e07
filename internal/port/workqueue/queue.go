// Package workqueue defines the durable work queue port (interface).
//
// One named queue exists per worker class. Delivery is at-least-once with
// no ordering guarantee across scenarios of the same session; consumers
// must tolerate duplicates.
package workqueue

import (
	"context"
	"errors"
	"time"
)

// ErrNoWork is returned by Dequeue when the wait window elapses without a
// delivery. It is the normal idle outcome, not a failure.
var ErrNoWork = errors.New("workqueue: no work available")

// Delivery is one dequeued work item. Ack removes it from the queue; Nak
// asks for redelivery.
type Delivery interface {
	Data() []byte
	Ack() error
	Nak() error
}

// Queue is the port interface for per-class work queues.
type Queue interface {
	// Enqueue appends data to the named queue.
	Enqueue(ctx context.Context, queue string, data []byte) error

	// Dequeue blocks up to wait for the next item on the named queue and
	// returns ErrNoWork when the window elapses empty.
	Dequeue(ctx context.Context, queue string, wait time.Duration) (Delivery, error)

	// DeadLetter parks an unprocessable payload on the queue's dead-letter
	// subject so it can be inspected without blocking redelivery.
	DeadLetter(ctx context.Context, queue string, data []byte) error

	// Drain gracefully drains before closing. Pending messages are
	// processed; no new messages are accepted.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}
