// Package handlers provides HTTP and Lambda handlers for the repayment negotiation engine.
package handlers

import (
	"context"
	"fmt"
	"time"

	appConfig "repayment-negotiation-engine/internal/config"
	"repayment-negotiation-engine/internal/services/database"
	"repayment-negotiation-engine/internal/utils"
)

// OverdueRefreshHandler recomputes overdue status from due dates. It runs on
// a daily schedule.
type OverdueRefreshHandler struct {
	db           *database.DB
	borrowerRepo *database.BorrowerRepository
	now          func() time.Time
}

// NewOverdueRefreshHandler creates a new overdue refresh handler.
func NewOverdueRefreshHandler() (*OverdueRefreshHandler, error) {
	cfg, err := appConfig.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load app config: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &OverdueRefreshHandler{
		db:           db,
		borrowerRepo: database.NewBorrowerRepository(db),
		now:          time.Now,
	}, nil
}

// RefreshResult summarizes a completed overdue recompute.
type RefreshResult struct {
	Message string `json:"message"`
	Checked int    `json:"checked"`
	Updated int    `json:"updated"`
	Failed  int    `json:"failed"`
}

// Handle recomputes the overdue flag and day count for every borrower with a
// due date, writing only the rows whose values changed.
func (h *OverdueRefreshHandler) Handle(ctx context.Context) (RefreshResult, error) {
	logger := utils.GetLogger()

	borrowers, err := h.borrowerRepo.ListWithDueDate(ctx)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("failed to list borrowers: %w", err)
	}

	result := RefreshResult{Checked: len(borrowers)}
	today := h.now().UTC()

	for _, b := range borrowers {
		overdueDays := OverdueDays(*b.DueDate, today)
		isOverdue := overdueDays > 0

		if isOverdue == b.IsOverdue && overdueDays == b.OverdueDays {
			continue
		}

		if err := h.borrowerRepo.UpdateOverdueStatus(ctx, b.ID, isOverdue, overdueDays); err != nil {
			result.Failed++
			logger.Warn("Failed to update overdue status",
				utils.Int64("borrower_id", b.ID),
				utils.Error(err))
			continue
		}
		result.Updated++
	}

	result.Message = "Overdue refresh complete"

	logger.Info("Overdue refresh complete",
		utils.Int("checked", result.Checked),
		utils.Int("updated", result.Updated),
		utils.Int("failed", result.Failed))

	return result, nil
}

// Close cleans up resources.
func (h *OverdueRefreshHandler) Close() {
	if h.db != nil {
		h.db.Close()
	}
}

// OverdueDays returns the whole days elapsed since the due date, never
// negative.
func OverdueDays(dueDate, today time.Time) int {
	days := int(today.Sub(dueDate).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
