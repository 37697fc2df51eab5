package service

import (
	"math"
	"testing"
)

func TestSmoothSeedsFromFirstObservation(t *testing.T) {
	s := newETASpeedState(0.3)
	if got := s.Smooth("bus-7", 40); math.Abs(got-40) > 1e-9 {
		t.Fatalf("first observation = %v, want 40", got)
	}
}

func TestSmoothEWMA(t *testing.T) {
	s := newETASpeedState(0.3)
	s.Smooth("bus-7", 40)

	// 0.3*10 + 0.7*40 = 31
	if got := s.Smooth("bus-7", 10); math.Abs(got-31) > 1e-9 {
		t.Fatalf("second observation = %v, want 31", got)
	}
}

func TestSmoothFloorsAtOne(t *testing.T) {
	s := newETASpeedState(0.3)
	if got := s.Smooth("bus-7", 0); got != 1 {
		t.Fatalf("smoothed speed = %v, want floor of 1 km/h", got)
	}
	// the floor value is carried forward, not the raw zero
	if got := s.Smooth("bus-7", 0); got != 1 {
		t.Fatalf("second smoothed speed = %v, want 1", got)
	}
}

func TestSmoothEvict(t *testing.T) {
	s := newETASpeedState(0.3)
	s.Smooth("bus-7", 40)
	s.Evict("bus-7")

	// re-seeded from scratch after eviction
	if got := s.Smooth("bus-7", 10); math.Abs(got-10) > 1e-9 {
		t.Fatalf("post-eviction observation = %v, want 10", got)
	}
}

func TestETAMinutes(t *testing.T) {
	// 2.5 km at 30 km/h: ceil(2.5 / 0.5) = 5 minutes
	if got := etaMinutes(2500, 30); got != 5 {
		t.Fatalf("eta = %d, want 5", got)
	}

	// crawling bus at the 1 km/h floor: 100 m is still a 6 minute ride
	if got := etaMinutes(100, 1); got != 6 {
		t.Fatalf("eta = %d, want 6", got)
	}

	// right on top of the stop: clamp to 1 minute
	if got := etaMinutes(0, 40); got != 1 {
		t.Fatalf("eta = %d, want the 1 minute floor", got)
	}
}
