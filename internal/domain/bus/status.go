package bus

import (
	"errors"
	"strings"
)

// Status is the operational state of a bus as stored in the `buses` table.
type Status string

const (
	StatusIdle        Status = "IDLE"
	StatusMoving      Status = "MOVING"
	StatusStopped     Status = "STOPPED"
	StatusMaintenance Status = "MAINTENANCE"
	StatusInactive    Status = "INACTIVE"
)

var ErrInvalidStatus = errors.New("invalid bus status")

// ParseStatus normalizes (uppercases+trims) and validates a bus status string.
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
	case StatusIdle, StatusMoving, StatusStopped, StatusMaintenance, StatusInactive:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}
