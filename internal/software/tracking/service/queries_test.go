package service

import (
	"testing"
	"time"

	"bus-track/internal/domain/bus"
)

func TestClassifyLastSeen(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		updateAgo  time.Duration
		wantStatus string
	}{
		{"just now", 30 * time.Second, "very_recent"},
		{"four minutes", 4 * time.Minute, "very_recent"},
		{"ten minutes", 10 * time.Minute, "recent"},
		{"one hour", time.Hour, "moderate"},
		{"three hours", 3 * time.Hour, "old"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &bus.Bus{LastUpdateAt: now.Add(-tt.updateAgo)}
			ls := classifyLastSeen(b, now)
			if ls.Status != tt.wantStatus {
				t.Fatalf("status = %q, want %q", ls.Status, tt.wantStatus)
			}
			if ls.MinutesAgo != int(tt.updateAgo.Minutes()) {
				t.Fatalf("minutes_ago = %d, want %d", ls.MinutesAgo, int(tt.updateAgo.Minutes()))
			}
		})
	}
}

func TestClassifyLastSeenUsesLaterTimestamp(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	older := now.Add(-time.Hour)
	newer := now.Add(-2 * time.Minute)

	// last_online_at newer than last_update_at (toggle after stale demotion)
	b := &bus.Bus{LastUpdateAt: older, LastOnlineAt: &newer}
	ls := classifyLastSeen(b, now)
	if !ls.Timestamp.Equal(newer) {
		t.Fatalf("timestamp = %v, want the later %v", ls.Timestamp, newer)
	}
	if ls.Status != "very_recent" {
		t.Fatalf("status = %q, want very_recent", ls.Status)
	}
}

func TestClassifyLastSeenUnknown(t *testing.T) {
	ls := classifyLastSeen(&bus.Bus{}, time.Now().UTC())
	if ls.Status != "unknown" {
		t.Fatalf("zero timestamps must classify as unknown, got %q", ls.Status)
	}
}
