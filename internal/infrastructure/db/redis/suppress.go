package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/schooltrack/alert-engine/internal/core/domain"
)

const defaultSuppressWindow = 30 * time.Second

// Suppressor drops alerts whose fingerprint was already raised within the
// window, so a flapping signal or a restarted replica does not repeat itself.
// Key format: suppress:<fingerprint>
type Suppressor struct {
	client *redis.Client
	window time.Duration
}

// NewSuppressor creates a Suppressor. A window <= 0 uses defaultSuppressWindow.
func NewSuppressor(client *redis.Client, window time.Duration) *Suppressor {
	if window <= 0 {
		window = defaultSuppressWindow
	}
	return &Suppressor{client: client, window: window}
}

// Filter claims every event's fingerprint with SET NX in one pipeline and
// returns the events that were not already claimed, in their original order.
func (s *Suppressor) Filter(ctx context.Context, events []domain.AlertEvent) ([]domain.AlertEvent, error) {
	if len(events) == 0 {
		return events, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.BoolCmd, len(events))
	for i, e := range events {
		cmds[i] = pipe.SetNX(ctx, s.key(e), e.Timestamp.Unix(), s.window)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("suppress check: %w", err)
	}

	kept := make([]domain.AlertEvent, 0, len(events))
	for i, cmd := range cmds {
		if cmd.Val() {
			kept = append(kept, events[i])
		}
	}
	return kept, nil
}

func (s *Suppressor) key(e domain.AlertEvent) string {
	return "suppress:" + e.Fingerprint()
}
