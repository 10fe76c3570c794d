// Package database provides database operations for the repayment negotiation engine.
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"repayment-negotiation-engine/internal/models"
)

// ExecutiveRepository handles field executive database operations.
type ExecutiveRepository struct {
	db *DB
}

// NewExecutiveRepository creates a new executive repository.
func NewExecutiveRepository(db *DB) *ExecutiveRepository {
	return &ExecutiveRepository{db: db}
}

// FindByRegion returns an on-duty field executive covering the region with
// the fewest assigned borrowers, or nil if nobody is on duty there.
func (r *ExecutiveRepository) FindByRegion(ctx context.Context, region string) (*models.FieldExecutive, error) {
	query := `
		SELECT e.id, e.name, e.phone, e.region, e.is_on_duty
		FROM field_executives e
		LEFT JOIN borrowers b ON b.assigned_executive = e.id
		WHERE e.region = $1 AND e.is_on_duty = true
		GROUP BY e.id, e.name, e.phone, e.region, e.is_on_duty
		ORDER BY COUNT(b.id), e.id
		LIMIT 1`

	var exec models.FieldExecutive
	err := r.db.QueryRowContext(ctx, query, region).Scan(
		&exec.ID,
		&exec.Name,
		&exec.Phone,
		&exec.Region,
		&exec.IsOnDuty,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find executive: %w", err)
	}

	return &exec, nil
}

// ListOnDuty returns all on-duty field executives.
func (r *ExecutiveRepository) ListOnDuty(ctx context.Context) ([]*models.FieldExecutive, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, phone, region, is_on_duty
		FROM field_executives
		WHERE is_on_duty = true
		ORDER BY region, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query executives: %w", err)
	}
	defer rows.Close()

	var execs []*models.FieldExecutive
	for rows.Next() {
		var exec models.FieldExecutive
		if err := rows.Scan(&exec.ID, &exec.Name, &exec.Phone, &exec.Region, &exec.IsOnDuty); err != nil {
			return nil, fmt.Errorf("failed to scan executive: %w", err)
		}
		execs = append(execs, &exec)
	}

	return execs, rows.Err()
}
