package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"deepresearch/internal/app"
	"deepresearch/internal/platform/rabbitmq"
)

// Dispatcher runs one session's pipeline invocation to completion or
// recorded failure.
type Dispatcher interface {
	Dispatch(ctx context.Context, sessionID string) error
}

// ResearchWorker is the background executor: it consumes the durable job
// queue with manual acks and a Qos bound of `concurrency` unacked
// deliveries, so at most that many pipeline runs are in flight. Each job
// runs to completion before its slot is released; there is no preemption.
// Close stops pulling new deliveries and waits for in-flight jobs to
// finish. A worker process crash mid-run leaves the session RUNNING, which
// is a documented operational gap, not something this worker heals.
type ResearchWorker struct {
	conn        *amqp.Connection
	dispatcher  Dispatcher
	queueName   string
	concurrency int
	logger      zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewResearchWorker(conn *amqp.Connection, dispatcher Dispatcher, queueName string, concurrency int, logger zerolog.Logger) *ResearchWorker {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &ResearchWorker{
		conn:        conn,
		dispatcher:  dispatcher,
		queueName:   queueName,
		concurrency: concurrency,
		logger:      logger,
	}
}

func (w *ResearchWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	if err := ch.Qos(w.concurrency, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	var once sync.Once
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			defer once.Do(func() { _ = ch.Close() })

			for {
				select {
				case <-workerCtx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						return
					}
					w.handle(d)
				}
			}
		}()
	}

	return nil
}

func (w *ResearchWorker) handle(d amqp.Delivery) {
	var job rabbitmq.ResearchJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		w.logger.Error().Err(err).Msg("worker decode job failed, dropping")
		_ = d.Nack(false, false)
		return
	}

	// Shutdown only stops pulling new deliveries; an in-flight run is never
	// preempted, so the dispatch context is detached from the worker's. The
	// pipeline's own wall-clock ceiling still bounds the run.
	err := w.dispatcher.Dispatch(context.Background(), job.SessionID)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, app.ErrAlreadyDispatched):
		// Duplicate delivery; the first one owns the run.
		w.logger.Info().Str("session_id", job.SessionID).Msg("dispatch conflict, job already taken")
		_ = d.Ack(false)
	case errors.Is(err, app.ErrSessionNotFound):
		w.logger.Warn().Str("session_id", job.SessionID).Msg("job references unknown session, dropping")
		_ = d.Ack(false)
	default:
		// Storage-level failure before any terminal write; redeliver. The
		// status compare-and-swap keeps redelivery idempotent.
		w.logger.Error().Err(err).Str("session_id", job.SessionID).Msg("dispatch failed, requeueing")
		_ = d.Nack(false, true)
	}
}

func (w *ResearchWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
