// Package models defines the data structures for the repayment negotiation engine.
package models

import (
	"time"
)

// RiskLevel is the borrower's persisted collections-risk classification.
type RiskLevel string

const (
	RiskLevelPending  RiskLevel = "PENDING"
	RiskLevelNormal   RiskLevel = "NORMAL_RISK"
	RiskLevelModerate RiskLevel = "MODERATE_RISK"
	RiskLevelHigh     RiskLevel = "HIGH_RISK"
	RiskLevelCritical RiskLevel = "CRITICAL_RISK"
)

// ValidRiskLevels returns all valid risk level values.
func ValidRiskLevels() []RiskLevel {
	return []RiskLevel{
		RiskLevelPending,
		RiskLevelNormal,
		RiskLevelModerate,
		RiskLevelHigh,
		RiskLevelCritical,
	}
}

// IsValid checks if the risk level is valid.
func (r RiskLevel) IsValid() bool {
	for _, valid := range ValidRiskLevels() {
		if r == valid {
			return true
		}
	}
	return false
}

// IsElevated reports whether the risk level triggers field-executive assignment.
func (r RiskLevel) IsElevated() bool {
	return r == RiskLevelHigh || r == RiskLevelCritical
}

// PlanStatus tracks where the borrower stands in the plan-offer lifecycle.
type PlanStatus string

const (
	PlanStatusNone     PlanStatus = "none"
	PlanStatusPending  PlanStatus = "pending"
	PlanStatusAccepted PlanStatus = "accepted"
	PlanStatusRejected PlanStatus = "rejected"
)

// StressLevel is the discrete tier derived from the composite score.
type StressLevel string

const (
	StressLow      StressLevel = "Low"
	StressModerate StressLevel = "Moderate"
	StressHigh     StressLevel = "High"
	StressCritical StressLevel = "Critical"
	StressUnknown  StressLevel = "Unknown"
)

// BehavioralSnapshot is the latest analysis result embedded on the borrower.
type BehavioralSnapshot struct {
	StressLevel      StressLevel `json:"stress_level" db:"stress_level"`
	PrimaryIssue     string      `json:"primary_issue" db:"primary_issue"`
	WillingnessToPay string      `json:"willingness_to_pay" db:"willingness_to_pay"`
	LastAnalysisDate time.Time   `json:"last_analysis_date" db:"last_analysis_date"`
	DetailedInsights string      `json:"detailed_insights" db:"detailed_insights"`
}

// Borrower represents a borrower record. The engine reads the financial and
// temporal fields and mutates riskLevel, planStatus and the behavioral snapshot;
// everything else is owned by the surrounding system.
type Borrower struct {
	ID                 int64               `json:"id" db:"id"`
	LoanID             string              `json:"loan_id" db:"loan_id"`
	CustomerName       string              `json:"customer_name" db:"customer_name"`
	PhoneNumber        string              `json:"phone_number" db:"phone_number"`
	Address            string              `json:"address" db:"address"`
	LoanAmount         float64             `json:"loan_amount" db:"loan_amount"`
	OutstandingBalance float64             `json:"outstanding_balance" db:"outstanding_balance"`
	EMIAmount          float64             `json:"emi_amount" db:"emi_amount"`
	DueDate            *time.Time          `json:"due_date,omitempty" db:"due_date"`
	IsOverdue          bool                `json:"is_overdue" db:"is_overdue"`
	OverdueDays        int                 `json:"overdue_days" db:"overdue_days"`
	RiskLevel          RiskLevel           `json:"risk_level" db:"risk_level"`
	PlanStatus         PlanStatus          `json:"plan_status" db:"plan_status"`
	AssignedExecutive  *int64              `json:"assigned_executive,omitempty" db:"assigned_executive"`
	AssignedManager    *int64              `json:"assigned_manager,omitempty" db:"assigned_manager"`
	Behavioral         *BehavioralSnapshot `json:"behavioral,omitempty"`
	BatchID            string              `json:"batch_id,omitempty" db:"batch_id"`
	CreatedAt          time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at" db:"updated_at"`
}

// BorrowerCreate represents the data needed to create a new borrower.
type BorrowerCreate struct {
	LoanID             string     `json:"loan_id" validate:"required,min=1,max=50"`
	CustomerName       string     `json:"customer_name" validate:"required"`
	PhoneNumber        string     `json:"phone_number"`
	Address            string     `json:"address"`
	LoanAmount         float64    `json:"loan_amount" validate:"gte=0"`
	OutstandingBalance float64    `json:"outstanding_balance" validate:"gte=0"`
	EMIAmount          float64    `json:"emi_amount" validate:"gte=0"`
	DueDate            *time.Time `json:"due_date,omitempty"`
	BatchID            string     `json:"batch_id,omitempty"`
}

// BorrowerUpdate carries the engine-owned fields back to persistence
// after an analysis pass.
type BorrowerUpdate struct {
	RiskLevel         RiskLevel           `json:"risk_level"`
	PlanStatus        PlanStatus          `json:"plan_status"`
	Behavioral        *BehavioralSnapshot `json:"behavioral,omitempty"`
	AssignedExecutive *int64              `json:"assigned_executive,omitempty"`
}

// FieldExecutive is an on-duty field agent covering one operational region.
type FieldExecutive struct {
	ID       int64  `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Phone    string `json:"phone" db:"phone"`
	Region   string `json:"region" db:"region"`
	IsOnDuty bool   `json:"is_on_duty" db:"is_on_duty"`
}

// CSVBorrowerRow represents a row from an uploaded borrower CSV file.
type CSVBorrowerRow struct {
	LoanID             string  `csv:"loan_id"`
	CustomerName       string  `csv:"customer_name"`
	PhoneNumber        string  `csv:"phone_number"`
	Address            string  `csv:"address"`
	LoanAmount         float64 `csv:"loan_amount"`
	OutstandingBalance float64 `csv:"outstanding_balance"`
	EMIAmount          float64 `csv:"emi_amount"`
	DueDate            string  `csv:"due_date"`
}

// ToBorrowerCreate converts a CSV row to a BorrowerCreate model.
func (r *CSVBorrowerRow) ToBorrowerCreate(batchID string) (*BorrowerCreate, error) {
	create := &BorrowerCreate{
		LoanID:             r.LoanID,
		CustomerName:       r.CustomerName,
		PhoneNumber:        r.PhoneNumber,
		Address:            r.Address,
		LoanAmount:         r.LoanAmount,
		OutstandingBalance: r.OutstandingBalance,
		EMIAmount:          r.EMIAmount,
		BatchID:            batchID,
	}

	if r.DueDate != "" {
		due, err := time.Parse("2006-01-02", r.DueDate)
		if err != nil {
			return nil, ErrInvalidDueDate
		}
		create.DueDate = &due
	}

	if err := ValidateBorrowerCreate(create); err != nil {
		return nil, err
	}

	return create, nil
}

// BulkInsertResult contains the results of a bulk insert operation.
type BulkInsertResult struct {
	InsertedCount int      `json:"inserted_count"`
	FailedCount   int      `json:"failed_count"`
	Errors        []string `json:"errors,omitempty"`
}
