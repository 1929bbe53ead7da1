package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/schooltrack/alert-engine/internal/api/metrics"
	"github.com/schooltrack/alert-engine/internal/core/domain"
	"github.com/schooltrack/alert-engine/internal/core/ports"
	"github.com/schooltrack/alert-engine/pkg/logger"
)

const (
	channelBuffer  = 256
	defaultTimeout = 10 * time.Second
)

// BatchWriter persists alert batches off the tick path. A single worker keeps
// batches in the order they were enqueued; after a batch is stored it is
// forwarded to every downstream publisher.
type BatchWriter struct {
	queue      chan domain.Batch
	alerts     ports.AlertRepository
	publishers []ports.BatchPublisher
	timeout    time.Duration
	done       chan struct{}
	closeOnce  sync.Once
	log        zerolog.Logger
}

// NewBatchWriter creates a BatchWriter. timeout bounds each write; if <= 0,
// defaultTimeout is used.
func NewBatchWriter(alerts ports.AlertRepository, timeout time.Duration, log zerolog.Logger, publishers ...ports.BatchPublisher) *BatchWriter {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &BatchWriter{
		queue:      make(chan domain.Batch, channelBuffer),
		alerts:     alerts,
		publishers: publishers,
		timeout:    timeout,
		done:       make(chan struct{}),
		log:        logger.Component(log, "batch_writer"),
	}
}

// Start launches the worker. It exits once the queue is closed and drained.
func (w *BatchWriter) Start(ctx context.Context) {
	go w.run(ctx)
}

// Enqueue hands a batch to the worker without blocking. A batch that does not
// fit is dropped and logged. Enqueue must not be called after Shutdown.
func (w *BatchWriter) Enqueue(batch domain.Batch) {
	select {
	case w.queue <- batch:
		metrics.PersistQueueDepth.Set(float64(len(w.queue)))
	default:
		metrics.PersistErrorsTotal.Inc()
		w.log.Error().Uint64("seq", batch.Seq).Int("events", len(batch.Events)).Msg("persist queue full, batch dropped")
	}
}

// Shutdown stops accepting batches and waits up to timeout for the worker to
// drain what is already queued.
func (w *BatchWriter) Shutdown(timeout time.Duration) error {
	w.closeOnce.Do(func() { close(w.queue) })

	select {
	case <-w.done:
		return nil
	case <-time.After(timeout):
		return errors.New("batch writer: drain timed out")
	}
}

func (w *BatchWriter) run(ctx context.Context) {
	defer close(w.done)

	for batch := range w.queue {
		metrics.PersistQueueDepth.Set(float64(len(w.queue)))
		w.write(ctx, batch)
	}
}

// write runs detached from ctx cancellation so queued batches still reach
// storage during shutdown.
func (w *BatchWriter) write(ctx context.Context, batch domain.Batch) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()

	if err := w.alerts.InsertAlerts(wctx, batch.Events); err != nil {
		metrics.PersistErrorsTotal.Inc()
		w.log.Error().Err(err).Uint64("seq", batch.Seq).Int("events", len(batch.Events)).Msg("alert persistence failed")
	}

	for _, p := range w.publishers {
		if err := p.PublishBatch(wctx, batch); err != nil {
			w.log.Warn().Err(err).Uint64("seq", batch.Seq).Msg("batch publish failed")
		}
	}
}
