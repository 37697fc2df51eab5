package geo

import (
	"errors"
	"math"
	"testing"
)

func TestValidateCoord(t *testing.T) {
	tests := []struct {
		name    string
		lng     float64
		lat     float64
		wantErr error
	}{
		{"valid", 37.6173, 55.7558, nil},
		{"zero point", 0, 0, nil},
		{"lat too high", 0, 90.0001, ErrInvalidLatitude},
		{"lat too low", 0, -91, ErrInvalidLatitude},
		{"lng too high", 180.5, 0, ErrInvalidLongitude},
		{"lng too low", -181, 0, ErrInvalidLongitude},
		{"nan lat", 0, math.NaN(), ErrInvalidLatitude},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoord(tt.lng, tt.lat)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateCoord(%v, %v) = %v, want %v", tt.lng, tt.lat, err, tt.wantErr)
			}
		})
	}
}

func TestValidateSpeed(t *testing.T) {
	if err := ValidateSpeed(0); err != nil {
		t.Fatalf("speed 0 should be valid: %v", err)
	}
	if err := ValidateSpeed(200); err != nil {
		t.Fatalf("speed 200 should be valid: %v", err)
	}
	if err := ValidateSpeed(-0.1); !errors.Is(err, ErrInvalidSpeed) {
		t.Fatalf("negative speed should fail, got %v", err)
	}
	if err := ValidateSpeed(200.1); !errors.Is(err, ErrInvalidSpeed) {
		t.Fatalf("speed above 200 should fail, got %v", err)
	}
}

func TestValidateHeading(t *testing.T) {
	// 360 is accepted on input; callers normalize it to 0
	for _, h := range []float64{0, 359.99, 360} {
		if err := ValidateHeading(h); err != nil {
			t.Fatalf("heading %v should be valid: %v", h, err)
		}
	}
	if err := ValidateHeading(-1); !errors.Is(err, ErrInvalidHeading) {
		t.Fatalf("negative heading should fail, got %v", err)
	}
	if err := ValidateHeading(360.5); !errors.Is(err, ErrInvalidHeading) {
		t.Fatalf("heading above 360 should fail, got %v", err)
	}
}

func TestHaversineMeters(t *testing.T) {
	// same point
	if d := HaversineMeters(37.6173, 55.7558, 37.6173, 55.7558); d != 0 {
		t.Fatalf("distance to self = %v, want 0", d)
	}

	// one degree of latitude is about 111.19 km on a 6371 km sphere
	d := HaversineMeters(0, 0, 0, 1)
	if math.Abs(d-111195) > 100 {
		t.Fatalf("one degree latitude = %v m, want ~111195", d)
	}

	// symmetry
	a := HaversineMeters(37.6173, 55.7558, 37.6217, 55.7539)
	b := HaversineMeters(37.6217, 55.7539, 37.6173, 55.7558)
	if math.Abs(a-b) > 1e-9 {
		t.Fatalf("distance not symmetric: %v vs %v", a, b)
	}

	// short hop in central Moscow, roughly 350 m
	if a < 250 || a > 450 {
		t.Fatalf("short hop = %v m, want within [250, 450]", a)
	}
}
