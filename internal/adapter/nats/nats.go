// Package nats implements the work queue and notification channel ports
// on a single NATS connection. Work queues ride on JetStream for
// at-least-once delivery; notification channels use core NATS pub/sub
// for live fan-out without replay.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/TestForge/internal/logger"
	"github.com/Strob0t/TestForge/internal/port/notify"
	"github.com/Strob0t/TestForge/internal/port/workqueue"
)

const (
	headerRequestID = "X-Request-ID"
	dlqSuffix       = ".dlq"

	// ackWait must exceed the longest plausible check battery; a worker
	// that dies mid-scenario gets its item redelivered after this long.
	ackWait = 5 * time.Minute
)

var (
	_ workqueue.Queue    = (*Bus)(nil)
	_ notify.Channel     = (*Bus)(nil)
	_ workqueue.Delivery = (*delivery)(nil)
)

// Bus implements workqueue.Queue and notify.Channel over one NATS
// connection. Durable pull consumers are created lazily per queue and
// cached for the lifetime of the Bus.
type Bus struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	stream string

	mu        sync.Mutex
	consumers map[string]jetstream.Consumer
}

// Connect establishes a connection to NATS and ensures the work stream
// exists. All work queue subjects live under "work.>".
func Connect(ctx context.Context, url, stream string) (*Bus, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     stream,
		Subjects: []string{"work.>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", stream)
	return &Bus{
		nc:        nc,
		js:        js,
		stream:    stream,
		consumers: make(map[string]jetstream.Consumer),
	}, nil
}

// workSubject maps a queue name like "qa.functional" onto its stream subject.
func workSubject(queue string) string {
	return "work." + queue
}

// durableName derives a JetStream-safe durable consumer name from a
// queue name. Consumer names must not contain dots.
func durableName(queue string) string {
	return "workers_" + strings.ReplaceAll(queue, ".", "_")
}

// Enqueue appends a work item to the named queue.
func (b *Bus) Enqueue(ctx context.Context, queue string, data []byte) error {
	if _, err := b.js.Publish(ctx, workSubject(queue), data); err != nil {
		return fmt.Errorf("nats enqueue %s: %w", queue, err)
	}
	return nil
}

// Dequeue blocks up to wait for the next item on the named queue.
// Returns workqueue.ErrNoWork when the window elapses empty.
func (b *Bus) Dequeue(ctx context.Context, queue string, wait time.Duration) (workqueue.Delivery, error) {
	cons, err := b.consumer(ctx, queue)
	if err != nil {
		return nil, err
	}

	batch, err := cons.Fetch(1, jetstream.FetchMaxWait(wait))
	if err != nil {
		return nil, fmt.Errorf("nats fetch %s: %w", queue, err)
	}
	for msg := range batch.Messages() {
		return &delivery{msg: msg}, nil
	}
	if err := batch.Error(); err != nil {
		return nil, fmt.Errorf("nats fetch %s: %w", queue, err)
	}
	return nil, workqueue.ErrNoWork
}

// DeadLetter parks an unprocessable payload on the queue's DLQ subject
// so operators can inspect it. The work stream captures DLQ subjects.
func (b *Bus) DeadLetter(ctx context.Context, queue string, data []byte) error {
	subject := workSubject(queue) + dlqSuffix
	if _, err := b.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("nats dead-letter %s: %w", queue, err)
	}
	slog.Warn("work item dead-lettered", "queue", queue, "bytes", len(data))
	return nil
}

// consumer returns the durable pull consumer for queue, creating it on
// first use.
func (b *Bus) consumer(ctx context.Context, queue string) (jetstream.Consumer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.consumers[queue]; ok {
		return c, nil
	}

	c, err := b.js.CreateOrUpdateConsumer(ctx, b.stream, jetstream.ConsumerConfig{
		Durable:       durableName(queue),
		FilterSubject: workSubject(queue),
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       ackWait,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create %s: %w", queue, err)
	}

	b.consumers[queue] = c
	return c, nil
}

// Publish sends a notification on the named channel. The request ID is
// carried in a header so subscribers can correlate log lines.
func (b *Bus) Publish(ctx context.Context, channel string, data []byte) error {
	msg := nats.NewMsg(channel)
	msg.Data = data
	if id := logger.RequestID(ctx); id != "" {
		msg.Header.Set(headerRequestID, id)
	}

	if err := b.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe registers a handler for notifications on the named channel.
// The returned function cancels the subscription.
func (b *Bus) Subscribe(_ context.Context, channel string, handler notify.Handler) (func(), error) {
	sub, err := b.nc.Subscribe(channel, func(msg *nats.Msg) {
		ctx := context.Background()
		if id := msg.Header.Get(headerRequestID); id != "" {
			ctx = logger.WithRequestID(ctx, id)
		}
		handler(ctx, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w", channel, err)
	}

	return func() {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("nats unsubscribe failed", "channel", channel, "error", err)
		}
	}, nil
}

// KeyValue returns (creating if needed) a JetStream KV bucket with the
// given TTL. The report cache uses this as its shared tier.
func (b *Bus) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := b.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("jetstream kv %s: %w", bucket, err)
	}
	return kv, nil
}

// Drain gracefully drains subscriptions before closing. Pending
// messages are processed; no new messages are accepted.
func (b *Bus) Drain() error {
	if err := b.nc.Drain(); err != nil {
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}

// Close shuts down the NATS connection immediately.
func (b *Bus) Close() error {
	b.nc.Close()
	return nil
}

// IsConnected reports whether the underlying connection is up.
func (b *Bus) IsConnected() bool {
	return b.nc != nil && b.nc.IsConnected()
}

// delivery adapts a JetStream message to the workqueue.Delivery port.
type delivery struct {
	msg jetstream.Msg
}

func (d *delivery) Data() []byte { return d.msg.Data() }
func (d *delivery) Ack() error   { return d.msg.Ack() }
func (d *delivery) Nak() error   { return d.msg.Nak() }
