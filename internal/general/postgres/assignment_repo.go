package postgres

import (
	"context"
	"time"

	"bus-track/internal/domain/assignment"
	"bus-track/internal/ports"
)

// AssignmentRepo resolves shift assignments using pgx and plain SQL.
type AssignmentRepo struct{}

// NewAssignmentRepo constructs a new AssignmentRepo.
func NewAssignmentRepo() ports.AssignmentRepository {
	return &AssignmentRepo{}
}

// FindActive returns the assignments binding (driver, bus) whose shift window
// covers now, newest shift_start first. Normally zero or one row; more than
// one means operator scheduling overlap and is resolved by the caller.
func (repo *AssignmentRepo) FindActive(ctx context.Context, driverID, busID string, now time.Time) ([]assignment.Assignment, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT id, driver_id, bus_id, route_id, shift_start, shift_end, status, active
		FROM assignments
		WHERE driver_id = $1
		  AND bus_id = $2
		  AND active = true
		  AND shift_start <= $3
		  AND shift_end >= $3
		ORDER BY shift_start DESC
	`, driverID, busID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []assignment.Assignment
	for rows.Next() {
		var a assignment.Assignment
		var status string
		if err := rows.Scan(&a.ID, &a.DriverID, &a.BusID, &a.RouteID, &a.ShiftStart, &a.ShiftEnd, &status, &a.Active); err != nil {
			return nil, err
		}
		if a.Status, err = assignment.ParseStatus(status); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}
