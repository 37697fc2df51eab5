package assignment

import (
	"errors"
	"strings"
	"time"
)

// Assignment is a time-bounded binding of a driver to a bus and route.
type Assignment struct {
	ID         string
	DriverID   string
	BusID      string
	RouteID    string
	ShiftStart time.Time
	ShiftEnd   time.Time
	Status     Status
	Active     bool
}

// Status is the lifecycle state of an assignment.
type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

var (
	ErrInvalidStatus      = errors.New("invalid assignment status")
	ErrBadShiftWindow     = errors.New("shift_end must be after shift_start")
	ErrNoActiveAssignment = errors.New("no active assignment for driver and bus")
)

// ParseStatus normalizes (uppercases+trims) and validates an assignment status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether the status is one of the allowed status constants.
func (status Status) Valid() bool {
	switch status {
	case StatusScheduled, StatusActive, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}

// Validate checks invariants of the Assignment entity.
func (a *Assignment) Validate() error {
	if !a.Status.Valid() {
		return ErrInvalidStatus
	}
	if !a.ShiftEnd.After(a.ShiftStart) {
		return ErrBadShiftWindow
	}
	return nil
}

// CurrentAt reports whether the assignment covers the given instant.
func (a *Assignment) CurrentAt(t time.Time) bool {
	return a.Active && !t.Before(a.ShiftStart) && !t.After(a.ShiftEnd)
}
