package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/ayurwell-scheduler/internal/events"
	"github.com/wolfman30/ayurwell-scheduler/internal/observability/metrics"
	"github.com/wolfman30/ayurwell-scheduler/pkg/logging"
)

// ConsumerName keys this worker's rows in the processed-events store.
const ConsumerName = "notify-worker"

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 10
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
	maxReceiveBackoff    = 5 * time.Second
)

// EventHandler processes one decoded event.
type EventHandler interface {
	HandleEvent(ctx context.Context, evt events.AppointmentEvent) error
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	metrics          *metrics.SchedulingMetrics
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds >= 0 {
			cfg.receiveWaitSecs = min(seconds, maxWaitSeconds)
		}
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size > 0 {
			cfg.receiveBatchSize = min(size, maxReceiveBatchSize)
		}
	}
}

func WithWorkerMetrics(m *metrics.SchedulingMetrics) WorkerOption {
	return func(cfg *workerConfig) { cfg.metrics = m }
}

// Worker drains the notification queue.
type Worker struct {
	queue     events.Queue
	processed events.ProcessedEvents
	handler   EventHandler
	logger    *logging.Logger
	cfg       workerConfig
	wg        sync.WaitGroup
}

// NewWorker consumes queue, skipping events processed already.
func NewWorker(queue events.Queue, processed events.ProcessedEvents, handler EventHandler, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if queue == nil || handler == nil {
		panic("notify: queue and handler are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if processed == nil {
		processed = events.NewMemoryProcessedStore()
	}
	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{queue: queue, processed: processed, handler: handler, logger: logger, cfg: cfg}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("notify worker started", "worker_id", workerID)

	backoff := 250 * time.Millisecond
	for {
		if ctx.Err() != nil {
			w.logger.Debug("notify worker stopping", "worker_id", workerID)
			return
		}
		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive notification events", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxReceiveBackoff)
			continue
		}
		backoff = 250 * time.Millisecond
		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

// handleMessage processes one message. It is deleted when handled, when
// it is a duplicate, or when it cannot be decoded; failed sends are left
// for redelivery.
func (w *Worker) handleMessage(ctx context.Context, msg events.Message) {
	evt, err := events.Decode([]byte(msg.Body))
	if err != nil {
		w.logger.Error("dropping undecodable notification event", "error", err, "message_id", msg.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}
	log := w.logger.With("event_id", evt.EventID, "type", evt.Type)

	done, err := w.processed.AlreadyProcessed(ctx, ConsumerName, evt.EventID)
	if err != nil {
		log.Warn("processed-event lookup failed", "error", err)
	} else if done {
		log.Info("skipping duplicate notification event")
		w.cfg.metrics.ObserveDelivery(string(evt.Type), "duplicate")
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	if err := w.handler.HandleEvent(ctx, evt); err != nil {
		log.Error("notification delivery failed", "error", err)
		w.cfg.metrics.ObserveDelivery(string(evt.Type), "failed")
		return
	}
	if _, err := w.processed.MarkProcessed(ctx, ConsumerName, evt.EventID); err != nil {
		log.Warn("failed to mark event processed", "error", err)
	}
	w.cfg.metrics.ObserveDelivery(string(evt.Type), "delivered")
	w.deleteMessage(msg.ReceiptHandle)
}

func (w *Worker) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete notification message", "error", err)
	}
}
