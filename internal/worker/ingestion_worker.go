package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"vidyai-rag/internal/app"
	"vidyai-rag/internal/model"
	"vidyai-rag/internal/platform/logger"
	"vidyai-rag/internal/platform/rabbitmq"
)

const defaultRequeueDelay = 5 * time.Second

type JobExecutor interface {
	Execute(ctx context.Context, jobID string) error
}

// IngestionWorker consumes ingestion jobs. Each consumer holds one unacknowledged
// delivery at a time and acks only after the job reached a terminal state, so a crash
// mid-job leaves the message for redelivery.
type IngestionWorker struct {
	conn        *amqp.Connection
	executor    JobExecutor
	queueName   string
	concurrency int
	log         *logger.Logger

	// requeueDelay holds back a delivery whose job could not be loaded before it is
	// returned to the queue.
	requeueDelay time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIngestionWorker(conn *amqp.Connection, executor JobExecutor, queueName string, concurrency int, log *logger.Logger) *IngestionWorker {
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &IngestionWorker{
		conn:         conn,
		executor:     executor,
		queueName:    queueName,
		concurrency:  concurrency,
		log:          log.With("component", "ingestion_worker", "queue", queueName),
		requeueDelay: defaultRequeueDelay,
	}
}

func (w *IngestionWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	for i := 0; i < w.concurrency; i++ {
		ch, deliveries, err := w.consume(i)
		if err != nil {
			cancel()
			w.wg.Wait()
			w.cancel = nil
			return err
		}

		w.wg.Add(1)
		go func(id int) {
			defer w.wg.Done()
			defer ch.Close()
			w.loop(workerCtx, id, deliveries)
		}(i)
	}

	w.log.Info("ingestion worker started", "concurrency", w.concurrency)
	return nil
}

func (w *IngestionWorker) consume(id int) (*amqp.Channel, <-chan amqp.Delivery, error) {
	ch, err := w.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("open worker channel failed: %w", err)
	}
	if _, err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		fmt.Sprintf("ingestion-worker-%d", id),
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("consume queue failed: %w", err)
	}
	return ch, deliveries, nil
}

func (w *IngestionWorker) loop(ctx context.Context, id int, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				w.log.Warn("delivery channel closed", "consumer", id)
				return
			}
			// jobs run to completion even when shutdown starts
			w.handle(context.WithoutCancel(ctx), d)
		}
	}
}

func (w *IngestionWorker) handle(ctx context.Context, d amqp.Delivery) {
	var msg model.IngestionMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil || msg.JobID == "" {
		w.log.Error("decode ingestion message failed", "message_id", d.MessageId, "error", err)
		_ = d.Nack(false, false)
		return
	}

	log := w.log.With("job_id", msg.JobID, "chapter_id", msg.ChapterID, "redelivered", d.Redelivered)
	log.Info("ingestion job received")

	if err := w.executor.Execute(ctx, msg.JobID); err != nil {
		switch {
		case errors.Is(err, app.ErrJobLookup):
			log.Warn("job lookup failed, requeueing", "error", err)
			w.wait(ctx)
			if err := d.Nack(false, true); err != nil {
				log.Error("requeue ingestion message failed", "error", err)
			}
			return
		case errors.Is(err, app.ErrJobNotFound):
			log.Warn("dropping message for unknown job")
		default:
			log.Error("ingestion job failed", "error", err)
		}
	}
	if err := d.Ack(false); err != nil {
		log.Error("ack ingestion message failed", "error", err)
	}
}

func (w *IngestionWorker) wait(ctx context.Context) {
	if w.requeueDelay <= 0 {
		return
	}
	t := time.NewTimer(w.requeueDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (w *IngestionWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
