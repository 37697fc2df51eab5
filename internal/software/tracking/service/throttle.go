package service

import (
	"sync"
	"time"

	"bus-track/internal/domain/geo"
)

// throttleEntry is the last accepted sample for one driver.
type throttleEntry struct {
	lastAt time.Time
	lng    float64
	lat    float64
}

// throttleRegistry suppresses samples that are too close in time or space to
// the previous accepted one. Process-local; entries die with the driver socket.
type throttleRegistry struct {
	minInterval time.Duration
	minDistance float64

	mu      sync.Mutex
	entries map[string]throttleEntry
}

func newThrottleRegistry(minInterval time.Duration, minDistanceM float64) *throttleRegistry {
	return &throttleRegistry{
		minInterval: minInterval,
		minDistance: minDistanceM,
		entries:     make(map[string]throttleEntry),
	}
}

// ShouldAccept reports whether the sample passes the throttle and, when it
// does, records it as the new reference point. The first sample for a driver
// always passes. A later sample passes only when BOTH the elapsed time since
// the previous accepted sample and the moved distance clear their minimums.
func (t *throttleRegistry) ShouldAccept(driverID string, lng, lat float64, clientTs time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, ok := t.entries[driverID]
	if ok {
		if clientTs.Sub(prev.lastAt) < t.minInterval {
			return false
		}
		if geo.HaversineMeters(prev.lng, prev.lat, lng, lat) < t.minDistance {
			return false
		}
	}

	t.entries[driverID] = throttleEntry{lastAt: clientTs, lng: lng, lat: lat}
	return true
}

// Evict clears the entry for a driver. The next sample after eviction is
// always accepted.
func (t *throttleRegistry) Evict(driverID string) {
	t.mu.Lock()
	delete(t.entries, driverID)
	t.mu.Unlock()
}
