// Package models defines the data structures for the repayment negotiation engine.
package models

import (
	"errors"
	"strings"
)

// Common errors
var (
	ErrBorrowerNotFound       = errors.New("borrower not found")
	ErrRecommendationNotFound = errors.New("recommendation not found")
	ErrNoRevisionToRestore    = errors.New("no auto-revised plan found to restore from")
	ErrPendingPlanExists      = errors.New("borrower already has a pending recommendation")
	ErrRecommendationResolved = errors.New("recommendation has already been resolved")
	ErrEmptyLoanID            = errors.New("loan_id cannot be empty")
	ErrEmptyCustomerName      = errors.New("customer_name cannot be empty")
	ErrNegativeLoanAmount     = errors.New("loan amount cannot be negative")
	ErrInvalidDueDate         = errors.New("due_date must be in YYYY-MM-DD format")
)

// ValidateBorrowerCreate validates borrower creation data.
func ValidateBorrowerCreate(b *BorrowerCreate) error {
	if strings.TrimSpace(b.LoanID) == "" {
		return ErrEmptyLoanID
	}

	if strings.TrimSpace(b.CustomerName) == "" {
		return ErrEmptyCustomerName
	}

	if b.LoanAmount < 0 || b.OutstandingBalance < 0 || b.EMIAmount < 0 {
		return ErrNegativeLoanAmount
	}

	return nil
}
