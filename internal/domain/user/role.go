package user

import (
	"errors"
	"strings"
)

// Role is an access role carried in JWT claims.
type Role string

const (
	RoleDriver Role = "DRIVER"
	RoleAdmin  Role = "ADMIN"
)

var ErrInvalidRole = errors.New("invalid role")

// ParseRole normalizes (uppercases+trims) and validates a role string.
func ParseRole(in string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(in)))
	if role.Valid() {
		return role, nil
	}
	return "", ErrInvalidRole
}

// Valid reports whether the role is one of the allowed role constants.
func (role Role) Valid() bool {
	switch role {
	case RoleDriver, RoleAdmin:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Role.
func (role Role) String() string {
	return string(role)
}
