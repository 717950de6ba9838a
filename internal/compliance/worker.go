package compliance

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/regulateai/platform/internal/queue"
)

// Worker drains the document generation queue and runs each job through
// the Generator.
type Worker struct {
	queue     queue.Queue
	generator *Generator
	logger    *slog.Logger

	concurrency int
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// WorkerConfig holds configuration for the document worker.
type WorkerConfig struct {
	Concurrency int
}

// DefaultWorkerConfig returns a WorkerConfig with sensible defaults.
func DefaultWorkerConfig() *WorkerConfig {
	return &WorkerConfig{Concurrency: 2}
}

// NewWorker creates a document generation worker.
func NewWorker(cfg *WorkerConfig, q queue.Queue, gen *Generator, logger *slog.Logger) *Worker {
	if cfg == nil {
		cfg = DefaultWorkerConfig()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		queue:       q,
		generator:   gen,
		logger:      logger,
		concurrency: cfg.Concurrency,
		stopCh:      make(chan struct{}),
	}
}

// Start begins processing document jobs from the queue. It spawns one
// goroutine per configured worker.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("starting document worker", "concurrency", w.concurrency)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}

	return nil
}

// Stop gracefully stops the worker and waits for in-flight jobs to finish.
func (w *Worker) Stop() {
	w.logger.Info("stopping document worker")
	close(w.stopCh)
	w.wg.Wait()
	w.logger.Info("document worker stopped")
}

// workerLoop is the main loop for a single worker goroutine.
func (w *Worker) workerLoop(ctx context.Context, workerID int) {
	defer w.wg.Done()

	logger := w.logger.With("worker_id", workerID)
	logger.Debug("worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker context cancelled")
			return
		case <-w.stopCh:
			logger.Debug("worker stop signal received")
			return
		default:
			job, err := w.queue.Dequeue(ctx)
			if err != nil {
				if errors.Is(err, queue.ErrNoJobs) {
					time.Sleep(1 * time.Second)
					continue
				}
				logger.Error("failed to dequeue job", "error", err)
				time.Sleep(5 * time.Second)
				continue
			}

			if err := w.generator.Process(ctx, job); err != nil {
				logger.Error("failed to process document job",
					"job_id", job.ID,
					"document_id", job.DocumentID,
					"error", err,
				)
				// Generation failures are recorded on the document; the job
				// itself is done. Only requeue when the queue state is stale.
				if ackErr := w.queue.Ack(ctx, job.ID); ackErr != nil {
					logger.Error("failed to ack job", "job_id", job.ID, "error", ackErr)
				}
				continue
			}

			if err := w.queue.Ack(ctx, job.ID); err != nil {
				logger.Error("failed to ack job", "job_id", job.ID, "error", err)
			}
		}
	}
}
