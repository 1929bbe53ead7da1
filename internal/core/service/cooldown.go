package service

import (
	"container/list"
	"time"
)

// CooldownEntry records when a device was found inside a geofence.
type CooldownEntry struct {
	DeviceID   string
	GeofenceID string
	EnteredAt  time.Time
}

type cooldownKey struct {
	deviceID   string
	geofenceID string
}

// Cooldown tracks (device, geofence) entries for a fixed window. Entries are
// kept oldest-first so eviction only ever looks at the front; the structure
// never holds anything older than one window after Evict.
type Cooldown struct {
	window  time.Duration
	order   *list.List // of *CooldownEntry, oldest first
	entries map[cooldownKey]*list.Element
}

// NewCooldown creates a tracker with the given window.
func NewCooldown(window time.Duration) *Cooldown {
	return &Cooldown{
		window:  window,
		order:   list.New(),
		entries: make(map[cooldownKey]*list.Element),
	}
}

// Mark records an entry at now, replacing any earlier one for the pair.
// Calls must use non-decreasing times.
func (c *Cooldown) Mark(deviceID, geofenceID string, now time.Time) {
	k := cooldownKey{deviceID, geofenceID}
	if el, ok := c.entries[k]; ok {
		el.Value.(*CooldownEntry).EnteredAt = now
		c.order.MoveToBack(el)
		return
	}
	c.entries[k] = c.order.PushBack(&CooldownEntry{DeviceID: deviceID, GeofenceID: geofenceID, EnteredAt: now})
}

// Active reports whether the pair was entered less than one window before now.
func (c *Cooldown) Active(deviceID, geofenceID string, now time.Time) bool {
	el, ok := c.entries[cooldownKey{deviceID, geofenceID}]
	if !ok {
		return false
	}
	return now.Sub(el.Value.(*CooldownEntry).EnteredAt) < c.window
}

// Evict drops every entry at least one window old and returns how many went.
func (c *Cooldown) Evict(now time.Time) int {
	n := 0
	for el := c.order.Front(); el != nil; el = c.order.Front() {
		e := el.Value.(*CooldownEntry)
		if now.Sub(e.EnteredAt) < c.window {
			break
		}
		c.order.Remove(el)
		delete(c.entries, cooldownKey{e.DeviceID, e.GeofenceID})
		n++
	}
	return n
}

// Len returns the number of tracked entries.
func (c *Cooldown) Len() int { return c.order.Len() }
