package user

import "time"

// Driver is the read-only identity record for a driver. Drivers are created
// and removed outside the tracking core; the core only verifies existence.
type Driver struct {
	ID        string
	Phone     string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}
