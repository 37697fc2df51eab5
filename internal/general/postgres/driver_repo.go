package postgres

import (
	"context"
	"errors"

	"bus-track/internal/domain/user"
	"bus-track/internal/ports"

	"github.com/jackc/pgx/v5"
)

// DriverRepo reads driver identity rows using pgx and plain SQL.
// The tracking core never creates or mutates drivers.
type DriverRepo struct{}

// NewDriverRepo constructs a new DriverRepo.
func NewDriverRepo() ports.DriverRepository {
	return &DriverRepo{}
}

// GetByID returns one driver by id.
func (repo *DriverRepo) GetByID(ctx context.Context, driverID string) (*user.Driver, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var out user.Driver
	var role string

	err = tx.QueryRow(ctx, `
		SELECT id, phone, role, created_at, updated_at
		FROM drivers
		WHERE id = $1
	`, driverID).Scan(&out.ID, &out.Phone, &role, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}

	out.Role, err = user.ParseRole(role)
	if err != nil {
		return nil, err
	}

	return &out, nil
}
