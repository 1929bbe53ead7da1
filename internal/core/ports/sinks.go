package ports

import (
	"context"

	"github.com/schooltrack/alert-engine/internal/core/domain"
)

// BatchSink receives every alert batch after it is derived. Implementations
// must not block the caller for long.
type BatchSink interface {
	Enqueue(batch domain.Batch)
}

// BatchPublisher forwards a persisted batch to a downstream consumer.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, batch domain.Batch) error
}

// Suppressor drops alerts already raised within its time window.
type Suppressor interface {
	Filter(ctx context.Context, events []domain.AlertEvent) ([]domain.AlertEvent, error)
}
