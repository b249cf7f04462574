// Package queue moves bulk jobs through RabbitMQ so any replica can run them.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type QueueName string

const QueueBulkJobs QueueName = "bulk_jobs"

var ErrNotConnected = errors.New("rabbit mq connection is not open")

// WorkerFunc is started on every (re)connect with a context that ends when
// the connection drops.
type WorkerFunc func(context.Context, *amqp.Connection) error

type Config struct {
	URL               string
	ReconnectInterval time.Duration
	ConnectTimeout    time.Duration
}

type Queue struct {
	config  *Config
	conn    *amqp.Connection
	workers []WorkerFunc
	mu      sync.Mutex
	log     *slog.Logger
}

func New(config *Config) *Queue {
	return &Queue{
		config: config,
		log:    slog.With("component", "queue"),
	}
}

// Start keeps a connection open until ctx is cancelled.
func (q *Queue) Start(ctx context.Context) error {
	q.log.Info("starting queue manager")
	defer q.log.Info("queue manager stopped")

	return q.reconnectLoop(ctx)
}

// RegisterWorker must be called before Start.
func (q *Queue) RegisterWorker(w WorkerFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.workers = append(q.workers, w)
}

func (q *Queue) reconnectLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		q.log.Info("connecting to rabbit mq")
		conn, err := q.connect()
		if err != nil {
			q.log.Error("connection to rabbit mq failed", "error", err)
			if !sleep(ctx, q.config.ReconnectInterval) {
				return nil
			}
			continue
		}
		q.log.Info("connected to rabbit mq")

		connCtx, cancel := context.WithCancel(ctx)
		q.startWorkers(connCtx, conn)

		connErrors := conn.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-ctx.Done():
			cancel()
			q.cleanup()
			return nil
		case err := <-connErrors:
			q.log.Error("rabbit mq connection closed", "error", err)
		}

		cancel()
		q.cleanup()
		if !sleep(ctx, q.config.ReconnectInterval) {
			return nil
		}
	}
}

func (q *Queue) connect() (*amqp.Connection, error) {
	conn, err := amqp.DialConfig(q.config.URL, amqp.Config{
		Dial: amqp.DefaultDial(q.config.ConnectTimeout),
	})
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	q.conn = conn
	q.mu.Unlock()

	return conn, nil
}

func (q *Queue) startWorkers(ctx context.Context, conn *amqp.Connection) {
	q.mu.Lock()
	workers := append([]WorkerFunc{}, q.workers...)
	q.mu.Unlock()

	for _, w := range workers {
		go func() {
			if err := w(ctx, conn); err != nil && ctx.Err() == nil {
				q.log.Error("queue worker exited", "error", err)
			}
		}()
	}
}

func (q *Queue) cleanup() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.conn != nil && !q.conn.IsClosed() {
		_ = q.conn.Close()
	}
	q.conn = nil
}

// Ready reports whether a broker connection is currently open.
func (q *Queue) Ready(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.conn == nil || q.conn.IsClosed() {
		return ErrNotConnected
	}
	return nil
}

func (q *Queue) Publish(ctx context.Context, queueName QueueName, message []byte) error {
	q.mu.Lock()
	conn := q.conn
	q.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return ErrNotConnected
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("Publish: open channel: %w", err)
	}
	defer ch.Close()

	if _, err := EnsureQueueExists(ch, queueName); err != nil {
		return fmt.Errorf("Publish: %w", err)
	}

	err = ch.PublishWithContext(ctx,
		"",                // default exchange routes by queue name
		string(queueName), // routing key
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         message,
		},
	)
	if err != nil {
		q.log.Error("failed to publish", "queue", queueName, "error", err)
		return fmt.Errorf("Publish: %w", err)
	}
	return nil
}

// EnsureQueueExists declares a durable queue.
func EnsureQueueExists(ch *amqp.Channel, name QueueName) (amqp.Queue, error) {
	queue, err := ch.QueueDeclare(
		string(name), // name
		true,         // durable
		false,        // auto-delete
		false,        // exclusive
		false,        // no-wait
		nil,          // args
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("declare queue %s: %w", name, err)
	}
	return queue, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
