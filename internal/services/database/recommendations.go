// Package database provides database operations for the repayment negotiation engine.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"repayment-negotiation-engine/internal/models"
)

// RecommendationRepository handles EMI recommendation database operations.
type RecommendationRepository struct {
	db *DB
}

// NewRecommendationRepository creates a new recommendation repository.
func NewRecommendationRepository(db *DB) *RecommendationRepository {
	return &RecommendationRepository{db: db}
}

const recommendationColumns = `id, borrower_id, manager_id, risk_level,
	suggested_emi, extended_tenure, grace_period, interest_waiver,
	plan_type, status, auto_revised, is_automated, created_at, updated_at`

// GetByID retrieves a recommendation by its database ID.
func (r *RecommendationRepository) GetByID(ctx context.Context, id int64) (*models.EMIRecommendation, error) {
	query := fmt.Sprintf(`SELECT %s FROM emi_recommendations WHERE id = $1`, recommendationColumns)

	rec, err := scanRecommendation(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrRecommendationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recommendation: %w", err)
	}

	return rec, nil
}

// GetByBorrowerID returns all recommendations for a borrower, newest first.
func (r *RecommendationRepository) GetByBorrowerID(ctx context.Context, borrowerID int64) ([]*models.EMIRecommendation, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM emi_recommendations
		WHERE borrower_id = $1
		ORDER BY created_at DESC, id DESC`, recommendationColumns)

	rows, err := r.db.QueryContext(ctx, query, borrowerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	var recs []*models.EMIRecommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

// ReplacePending supersedes all of the borrower's Pending recommendations and
// inserts the given ones as Pending, atomically. A fresh plan pair always
// displaces whatever offer was live before it.
func (r *RecommendationRepository) ReplacePending(ctx context.Context, borrowerID int64, recs []*models.RecommendationCreate) ([]*models.EMIRecommendation, error) {
	created := make([]*models.EMIRecommendation, 0, len(recs))
	now := time.Now().UTC()

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE emi_recommendations SET status = $2, updated_at = $3
			WHERE borrower_id = $1 AND status = $4`,
			borrowerID,
			string(models.RecommendationSuperseded),
			now,
			string(models.RecommendationPending),
		)
		if err != nil {
			return fmt.Errorf("failed to supersede pending recommendations: %w", err)
		}

		for _, rec := range recs {
			row, err := insertRecommendation(ctx, tx, rec, now)
			if err != nil {
				return err
			}
			created = append(created, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// CreatePending inserts one Pending recommendation. It fails with
// models.ErrPendingPlanExists if the borrower already has a live offer.
func (r *RecommendationRepository) CreatePending(ctx context.Context, rec *models.RecommendationCreate) (*models.EMIRecommendation, error) {
	var created *models.EMIRecommendation
	now := time.Now().UTC()

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var pending int
		err := tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM emi_recommendations
			WHERE borrower_id = $1 AND status = $2`,
			rec.BorrowerID, string(models.RecommendationPending),
		).Scan(&pending)
		if err != nil {
			return fmt.Errorf("failed to check pending recommendations: %w", err)
		}
		if pending > 0 {
			return models.ErrPendingPlanExists
		}

		created, err = insertRecommendation(ctx, tx, rec, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// UpdateStatus sets a recommendation's lifecycle status.
func (r *RecommendationRepository) UpdateStatus(ctx context.Context, id int64, status models.RecommendationStatus) error {
	rows, err := r.db.ExecContext(ctx, `
		UPDATE emi_recommendations SET status = $2, updated_at = $3
		WHERE id = $1`,
		id, string(status), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update recommendation status: %w", err)
	}
	if rows == 0 {
		return models.ErrRecommendationNotFound
	}

	return nil
}

// SupersedePending marks all of the borrower's Pending recommendations as
// Superseded, except the one with exceptID. Returns the number affected.
func (r *RecommendationRepository) SupersedePending(ctx context.Context, borrowerID int64, exceptID int64) (int, error) {
	rows, err := r.db.ExecContext(ctx, `
		UPDATE emi_recommendations SET status = $3, updated_at = $4
		WHERE borrower_id = $1 AND status = $2 AND id != $5`,
		borrowerID,
		string(models.RecommendationPending),
		string(models.RecommendationSuperseded),
		time.Now().UTC(),
		exceptID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to supersede recommendations: %w", err)
	}

	return int(rows), nil
}

// RestorePlan supersedes every Pending recommendation for the borrower and
// reinstates the original with the given id as Pending, atomically. The
// one-live-offer invariant holds at every point inside the transaction.
func (r *RecommendationRepository) RestorePlan(ctx context.Context, borrowerID, originalID int64) error {
	now := time.Now().UTC()

	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE emi_recommendations SET status = $2, updated_at = $3
			WHERE borrower_id = $1 AND status = $4`,
			borrowerID,
			string(models.RecommendationSuperseded),
			now,
			string(models.RecommendationPending),
		)
		if err != nil {
			return fmt.Errorf("failed to supersede pending recommendations: %w", err)
		}

		tag, err := tx.Exec(ctx, `
			UPDATE emi_recommendations SET status = $2, updated_at = $3
			WHERE id = $1 AND borrower_id = $4`,
			originalID,
			string(models.RecommendationPending),
			now,
			borrowerID,
		)
		if err != nil {
			return fmt.Errorf("failed to reinstate original plan: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrRecommendationNotFound
		}

		return nil
	})
}

// LatestRevision returns the borrower's most recent auto-revised
// recommendation, or nil if none exists.
func (r *RecommendationRepository) LatestRevision(ctx context.Context, borrowerID int64) (*models.EMIRecommendation, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM emi_recommendations
		WHERE borrower_id = $1 AND auto_revised = true
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, recommendationColumns)

	rec, err := scanRecommendation(r.db.QueryRowContext(ctx, query, borrowerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query revisions: %w", err)
	}

	return rec, nil
}

// FirstOriginal returns the borrower's oldest non-revised recommendation, or
// nil if none exists.
func (r *RecommendationRepository) FirstOriginal(ctx context.Context, borrowerID int64) (*models.EMIRecommendation, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM emi_recommendations
		WHERE borrower_id = $1 AND auto_revised = false
		ORDER BY created_at, id
		LIMIT 1`, recommendationColumns)

	rec, err := scanRecommendation(r.db.QueryRowContext(ctx, query, borrowerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}

	return rec, nil
}

func insertRecommendation(ctx context.Context, tx pgx.Tx, rec *models.RecommendationCreate, now time.Time) (*models.EMIRecommendation, error) {
	created := &models.EMIRecommendation{
		BorrowerID:     rec.BorrowerID,
		ManagerID:      rec.ManagerID,
		RiskLevel:      rec.RiskLevel,
		SuggestedEMI:   rec.SuggestedEMI,
		ExtendedTenure: rec.ExtendedTenure,
		GracePeriod:    rec.GracePeriod,
		InterestWaiver: rec.InterestWaiver,
		PlanType:       rec.PlanType,
		Status:         models.RecommendationPending,
		AutoRevised:    rec.AutoRevised,
		IsAutomated:    rec.IsAutomated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := tx.QueryRow(ctx, `
		INSERT INTO emi_recommendations (borrower_id, manager_id, risk_level,
			suggested_emi, extended_tenure, grace_period, interest_waiver,
			plan_type, status, auto_revised, is_automated, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		RETURNING id`,
		rec.BorrowerID,
		rec.ManagerID,
		string(rec.RiskLevel),
		rec.SuggestedEMI,
		rec.ExtendedTenure,
		rec.GracePeriod,
		rec.InterestWaiver,
		string(rec.PlanType),
		string(models.RecommendationPending),
		rec.AutoRevised,
		rec.IsAutomated,
		now,
	).Scan(&created.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert recommendation: %w", err)
	}

	return created, nil
}

func scanRecommendation(row pgx.Row) (*models.EMIRecommendation, error) {
	var rec models.EMIRecommendation
	var riskLevel, planType, status string

	err := row.Scan(
		&rec.ID,
		&rec.BorrowerID,
		&rec.ManagerID,
		&riskLevel,
		&rec.SuggestedEMI,
		&rec.ExtendedTenure,
		&rec.GracePeriod,
		&rec.InterestWaiver,
		&planType,
		&status,
		&rec.AutoRevised,
		&rec.IsAutomated,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.RiskLevel = models.RiskLevel(riskLevel)
	rec.PlanType = models.PlanType(planType)
	rec.Status = models.RecommendationStatus(status)

	return &rec, nil
}
