package service

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/schooltrack/alert-engine/internal/api/metrics"
	"github.com/schooltrack/alert-engine/internal/core/domain"
	"github.com/schooltrack/alert-engine/pkg/logger"
)

const defaultSubscriberBuffer = 8

// PreferenceLookup resolves a device's notification preference.
type PreferenceLookup interface {
	Lookup(deviceID string) (domain.NotificationPreference, bool)
}

// Subscription is one viewer's feed of published batches.
type Subscription struct {
	Subscriber domain.Subscriber
	C          <-chan domain.Batch
	ch         chan domain.Batch
}

// Hub is the in-process event bus. Every published batch is offered to every
// subscription; a subscription whose buffer is full loses that batch only.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	buffer int
	log    zerolog.Logger
}

// NewHub creates a Hub. A buffer <= 0 uses defaultSubscriberBuffer.
func NewHub(buffer int, log zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Hub{
		subs:   make(map[string]*Subscription),
		buffer: buffer,
		log:    logger.Component(log, "hub"),
	}
}

// Subscribe registers a viewer. Subscribing again with the same connection id
// closes the previous subscription.
func (h *Hub) Subscribe(sub domain.Subscriber) *Subscription {
	ch := make(chan domain.Batch, h.buffer)
	s := &Subscription{Subscriber: sub, C: ch, ch: ch}

	h.mu.Lock()
	if old, ok := h.subs[sub.ConnectionID]; ok {
		close(old.ch)
	}
	h.subs[sub.ConnectionID] = s
	n := len(h.subs)
	h.mu.Unlock()

	metrics.Subscribers.Set(float64(n))
	return s
}

// Unsubscribe removes the viewer and closes its channel.
func (h *Hub) Unsubscribe(connectionID string) {
	h.mu.Lock()
	if s, ok := h.subs[connectionID]; ok {
		close(s.ch)
		delete(h.subs, connectionID)
	}
	n := len(h.subs)
	h.mu.Unlock()

	metrics.Subscribers.Set(float64(n))
}

// Publish offers batch to every subscription without blocking.
func (h *Hub) Publish(batch domain.Batch) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, s := range h.subs {
		select {
		case s.ch <- batch:
		default:
			metrics.DeliveriesDroppedTotal.WithLabelValues("alerts").Inc()
			h.log.Warn().Str("connection_id", id).Uint64("seq", batch.Seq).Msg("subscriber buffer full, batch dropped")
		}
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// FilterBatch returns the events sub is authorized to see, in batch order.
// With preference-aware delivery an event also needs its device's preference
// to allow it; devices without a preference record are not narrowed.
func FilterBatch(events []domain.AlertEvent, sub domain.Subscriber, prefs PreferenceLookup) []domain.AlertEvent {
	var out []domain.AlertEvent
	for _, e := range events {
		if !sub.AuthorizedDevices.Contains(e.DeviceID) {
			continue
		}
		if sub.UsePreferences && prefs != nil {
			if p, ok := prefs.Lookup(e.DeviceID); ok && !p.Allows(e) {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}
