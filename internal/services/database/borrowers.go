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

// BorrowerRepository handles borrower database operations.
type BorrowerRepository struct {
	db *DB
}

// NewBorrowerRepository creates a new borrower repository.
func NewBorrowerRepository(db *DB) *BorrowerRepository {
	return &BorrowerRepository{db: db}
}

const borrowerColumns = `id, loan_id, customer_name, phone_number, address,
	loan_amount, outstanding_balance, emi_amount, due_date, is_overdue, overdue_days,
	risk_level, plan_status, assigned_executive, assigned_manager,
	stress_level, primary_issue, willingness_to_pay, last_analysis_date, detailed_insights,
	batch_id, created_at, updated_at`

// Create inserts a new borrower, upserting on loan_id.
func (r *BorrowerRepository) Create(ctx context.Context, borrower *models.BorrowerCreate) (int64, error) {
	query := `
		INSERT INTO borrowers (loan_id, customer_name, phone_number, address,
			loan_amount, outstanding_balance, emi_amount, due_date, risk_level, plan_status,
			batch_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		ON CONFLICT (loan_id) DO UPDATE SET
			customer_name = EXCLUDED.customer_name,
			phone_number = EXCLUDED.phone_number,
			address = EXCLUDED.address,
			loan_amount = EXCLUDED.loan_amount,
			outstanding_balance = EXCLUDED.outstanding_balance,
			emi_amount = EXCLUDED.emi_amount,
			due_date = EXCLUDED.due_date,
			batch_id = EXCLUDED.batch_id,
			updated_at = EXCLUDED.updated_at
		RETURNING id`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		borrower.LoanID,
		borrower.CustomerName,
		borrower.PhoneNumber,
		borrower.Address,
		borrower.LoanAmount,
		borrower.OutstandingBalance,
		borrower.EMIAmount,
		borrower.DueDate,
		string(models.RiskLevelPending),
		string(models.PlanStatusNone),
		borrower.BatchID,
		time.Now().UTC(),
	).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("failed to create borrower: %w", err)
	}

	return id, nil
}

// BulkInsert inserts multiple borrowers in one transaction. Failed rows are
// collected rather than aborting the batch.
func (r *BorrowerRepository) BulkInsert(ctx context.Context, borrowers []*models.BorrowerCreate) (*models.BulkInsertResult, error) {
	result := &models.BulkInsertResult{
		InsertedCount: 0,
		FailedCount:   0,
		Errors:        []string{},
	}

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		for _, b := range borrowers {
			_, err := tx.Exec(ctx, `
				INSERT INTO borrowers (loan_id, customer_name, phone_number, address,
					loan_amount, outstanding_balance, emi_amount, due_date, risk_level, plan_status,
					batch_id, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
				ON CONFLICT (loan_id) DO UPDATE SET
					customer_name = EXCLUDED.customer_name,
					phone_number = EXCLUDED.phone_number,
					address = EXCLUDED.address,
					loan_amount = EXCLUDED.loan_amount,
					outstanding_balance = EXCLUDED.outstanding_balance,
					emi_amount = EXCLUDED.emi_amount,
					due_date = EXCLUDED.due_date,
					batch_id = EXCLUDED.batch_id,
					updated_at = EXCLUDED.updated_at`,
				b.LoanID,
				b.CustomerName,
				b.PhoneNumber,
				b.Address,
				b.LoanAmount,
				b.OutstandingBalance,
				b.EMIAmount,
				b.DueDate,
				string(models.RiskLevelPending),
				string(models.PlanStatusNone),
				b.BatchID,
				time.Now().UTC(),
			)

			if err != nil {
				result.FailedCount++
				result.Errors = append(result.Errors, fmt.Sprintf("borrower %s: %v", b.LoanID, err))
			} else {
				result.InsertedCount++
			}
		}
		return nil
	})

	if err != nil {
		return result, fmt.Errorf("bulk insert failed: %w", err)
	}

	return result, nil
}

// GetByID retrieves a borrower by their database ID.
func (r *BorrowerRepository) GetByID(ctx context.Context, id int64) (*models.Borrower, error) {
	query := fmt.Sprintf(`SELECT %s FROM borrowers WHERE id = $1`, borrowerColumns)

	borrower, err := scanBorrower(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrBorrowerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get borrower: %w", err)
	}

	return borrower, nil
}

// GetByLoanID retrieves a borrower by their loan ID.
func (r *BorrowerRepository) GetByLoanID(ctx context.Context, loanID string) (*models.Borrower, error) {
	query := fmt.Sprintf(`SELECT %s FROM borrowers WHERE loan_id = $1`, borrowerColumns)

	borrower, err := scanBorrower(r.db.QueryRowContext(ctx, query, loanID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrBorrowerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get borrower: %w", err)
	}

	return borrower, nil
}

// UpdateEngineFields persists the fields the engine owns: risk level, plan
// status, the behavioral snapshot and the assigned executive.
func (r *BorrowerRepository) UpdateEngineFields(ctx context.Context, id int64, update *models.BorrowerUpdate) error {
	query := `
		UPDATE borrowers SET
			risk_level = $2,
			plan_status = $3,
			stress_level = $4,
			primary_issue = $5,
			willingness_to_pay = $6,
			last_analysis_date = $7,
			detailed_insights = $8,
			assigned_executive = COALESCE($9, assigned_executive),
			updated_at = $10
		WHERE id = $1`

	var stressLevel, primaryIssue, willingness, insights interface{}
	var analysisDate interface{}
	if update.Behavioral != nil {
		stressLevel = string(update.Behavioral.StressLevel)
		primaryIssue = update.Behavioral.PrimaryIssue
		willingness = update.Behavioral.WillingnessToPay
		analysisDate = update.Behavioral.LastAnalysisDate
		insights = update.Behavioral.DetailedInsights
	}

	rows, err := r.db.ExecContext(ctx, query,
		id,
		string(update.RiskLevel),
		string(update.PlanStatus),
		stressLevel,
		primaryIssue,
		willingness,
		analysisDate,
		insights,
		update.AssignedExecutive,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update borrower: %w", err)
	}
	if rows == 0 {
		return models.ErrBorrowerNotFound
	}

	return nil
}

// UpdateOverdueStatus sets the overdue flag and day count for one borrower.
func (r *BorrowerRepository) UpdateOverdueStatus(ctx context.Context, id int64, isOverdue bool, overdueDays int) error {
	rows, err := r.db.ExecContext(ctx, `
		UPDATE borrowers SET is_overdue = $2, overdue_days = $3, updated_at = $4
		WHERE id = $1`,
		id, isOverdue, overdueDays, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update overdue status: %w", err)
	}
	if rows == 0 {
		return models.ErrBorrowerNotFound
	}

	return nil
}

// ListOverdue returns borrowers at least minOverdue days past due without an
// accepted plan, ordered worst-first.
func (r *BorrowerRepository) ListOverdue(ctx context.Context, minOverdue, limit int) ([]*models.Borrower, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM borrowers
		WHERE is_overdue = true AND overdue_days >= $1 AND plan_status != $2
		ORDER BY overdue_days DESC, id
		LIMIT $3`, borrowerColumns)

	rows, err := r.db.QueryContext(ctx, query, minOverdue, string(models.PlanStatusAccepted), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue borrowers: %w", err)
	}
	defer rows.Close()

	return collectBorrowers(rows)
}

// ListWithDueDate returns borrowers that have a due date set, for the daily
// overdue recompute.
func (r *BorrowerRepository) ListWithDueDate(ctx context.Context) ([]*models.Borrower, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM borrowers
		WHERE due_date IS NOT NULL
		ORDER BY id`, borrowerColumns)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query borrowers: %w", err)
	}
	defer rows.Close()

	return collectBorrowers(rows)
}

// GetByBatchID retrieves all borrowers from a specific import batch.
func (r *BorrowerRepository) GetByBatchID(ctx context.Context, batchID string) ([]*models.Borrower, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM borrowers
		WHERE batch_id = $1
		ORDER BY id`, borrowerColumns)

	rows, err := r.db.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query borrowers: %w", err)
	}
	defer rows.Close()

	return collectBorrowers(rows)
}

// CountByBatchID returns the number of borrowers in a batch.
func (r *BorrowerRepository) CountByBatchID(ctx context.Context, batchID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM borrowers WHERE batch_id = $1", batchID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count borrowers: %w", err)
	}
	return count, nil
}

func scanBorrower(row pgx.Row) (*models.Borrower, error) {
	var b models.Borrower
	var riskLevel, planStatus string
	var stressLevel, primaryIssue, willingness, insights *string
	var analysisDate *time.Time

	err := row.Scan(
		&b.ID,
		&b.LoanID,
		&b.CustomerName,
		&b.PhoneNumber,
		&b.Address,
		&b.LoanAmount,
		&b.OutstandingBalance,
		&b.EMIAmount,
		&b.DueDate,
		&b.IsOverdue,
		&b.OverdueDays,
		&riskLevel,
		&planStatus,
		&b.AssignedExecutive,
		&b.AssignedManager,
		&stressLevel,
		&primaryIssue,
		&willingness,
		&analysisDate,
		&insights,
		&b.BatchID,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.RiskLevel = models.RiskLevel(riskLevel)
	b.PlanStatus = models.PlanStatus(planStatus)

	if stressLevel != nil {
		b.Behavioral = &models.BehavioralSnapshot{
			StressLevel: models.StressLevel(*stressLevel),
		}
		if primaryIssue != nil {
			b.Behavioral.PrimaryIssue = *primaryIssue
		}
		if willingness != nil {
			b.Behavioral.WillingnessToPay = *willingness
		}
		if analysisDate != nil {
			b.Behavioral.LastAnalysisDate = *analysisDate
		}
		if insights != nil {
			b.Behavioral.DetailedInsights = *insights
		}
	}

	return &b, nil
}

func collectBorrowers(rows pgx.Rows) ([]*models.Borrower, error) {
	var borrowers []*models.Borrower
	for rows.Next() {
		b, err := scanBorrower(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan borrower: %w", err)
		}
		borrowers = append(borrowers, b)
	}
	return borrowers, rows.Err()
}
