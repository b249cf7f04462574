package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/josh-kwaku/hub-transfers/internal/domain"
	"github.com/josh-kwaku/hub-transfers/internal/logging"
	"github.com/josh-kwaku/hub-transfers/internal/service/bulk"
)

type JobMessage struct {
	JobID uuid.UUID `json:"job_id"`
}

type publisher interface {
	Publish(ctx context.Context, queueName QueueName, message []byte) error
}

// JobDispatcher hands submitted jobs to whichever consumer picks them up.
type JobDispatcher struct {
	queue publisher
}

func NewJobDispatcher(q publisher) *JobDispatcher {
	return &JobDispatcher{queue: q}
}

func (d *JobDispatcher) Dispatch(ctx context.Context, jobID uuid.UUID) error {
	body, err := json.Marshal(JobMessage{JobID: jobID})
	if err != nil {
		return fmt.Errorf("Dispatch: %w", err)
	}
	if err := d.queue.Publish(ctx, QueueBulkJobs, body); err != nil {
		return fmt.Errorf("Dispatch: %w", err)
	}
	return nil
}

type jobRunner interface {
	Run(ctx context.Context, jobID uuid.UUID) (*domain.BulkJob, error)
}

// JobConsumer runs bulk jobs taken off the broker. Each registered worker
// holds its own channel with a prefetch of one, so the worker count is the
// number of jobs running at once.
type JobConsumer struct {
	runner  jobRunner
	workers int
	log     *slog.Logger
}

func NewJobConsumer(runner jobRunner, workers int) *JobConsumer {
	if workers < 1 {
		workers = 1
	}
	return &JobConsumer{
		runner:  runner,
		workers: workers,
		log:     slog.With("component", "bulk_job_consumer"),
	}
}

type workerRegistrar interface {
	RegisterWorker(w WorkerFunc)
}

// Register adds one Worker per configured worker to r.
func (c *JobConsumer) Register(r workerRegistrar) {
	for range c.workers {
		r.RegisterWorker(c.Worker)
	}
}

// Worker consumes bulk job messages on conn until ctx ends or the delivery
// channel closes. Jobs are acked once their run returns.
func (c *JobConsumer) Worker(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("Worker: open channel: %w", err)
	}
	defer ch.Close()

	if _, err := EnsureQueueExists(ch, QueueBulkJobs); err != nil {
		return fmt.Errorf("Worker: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("Worker: qos: %w", err)
	}

	deliveries, err := ch.Consume(
		string(QueueBulkJobs), // queue
		"",                    // consumer tag chosen by the server
		false,                 // autoAck
		false,                 // exclusive
		false,                 // noLocal
		false,                 // noWait
		nil,                   // args
	)
	if err != nil {
		return fmt.Errorf("Worker: consume: %w", err)
	}

	c.log.Info("consuming bulk jobs")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("Worker: delivery channel closed")
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *JobConsumer) handle(ctx context.Context, msg amqp.Delivery) {
	var m JobMessage
	if err := json.Unmarshal(msg.Body, &m); err != nil || m.JobID == uuid.Nil {
		c.log.Error("dropping malformed bulk job message", "body", string(msg.Body), "error", err)
		if err := msg.Nack(false, false); err != nil {
			c.log.Error("nack failed", "error", err)
		}
		return
	}

	bulk.RunDispatched(logging.WithLogger(ctx, c.log), c.runner, m.JobID)

	if err := msg.Ack(false); err != nil {
		c.log.Error("ack failed", "job_id", m.JobID, "error", err)
	}
}
