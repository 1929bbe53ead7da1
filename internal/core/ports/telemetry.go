package ports

import (
	"context"

	"github.com/schooltrack/alert-engine/internal/core/domain"
)

// TelemetrySource fetches the current position of every tracked device.
type TelemetrySource interface {
	Fetch(ctx context.Context) ([]domain.PositionSample, error)
}

// PositionSnapshot exposes the most recent successful telemetry poll.
type PositionSnapshot interface {
	Latest() []domain.PositionSample
}
