// Package models defines the data structures for the repayment negotiation engine.
package models

import (
	"time"
)

// PlanType distinguishes the two generated offers from the auto-revision.
type PlanType string

const (
	PlanTypeA      PlanType = "A"
	PlanTypeB      PlanType = "B"
	PlanTypeCustom PlanType = "custom"
)

// RecommendationStatus is the lifecycle state of an EMI recommendation.
type RecommendationStatus string

const (
	RecommendationPending    RecommendationStatus = "Pending"
	RecommendationAccepted   RecommendationStatus = "Accepted"
	RecommendationRejected   RecommendationStatus = "Rejected"
	RecommendationSuperseded RecommendationStatus = "Superseded"
)

// ValidRecommendationStatuses returns all valid recommendation status values.
func ValidRecommendationStatuses() []RecommendationStatus {
	return []RecommendationStatus{
		RecommendationPending,
		RecommendationAccepted,
		RecommendationRejected,
		RecommendationSuperseded,
	}
}

// IsValid checks if the recommendation status is valid.
func (s RecommendationStatus) IsValid() bool {
	for _, valid := range ValidRecommendationStatuses() {
		if s == valid {
			return true
		}
	}
	return false
}

// PlanTerms are the financial terms of a restructuring offer.
type PlanTerms struct {
	SuggestedEMI   int     `json:"suggested_emi"`
	ExtendedTenure int     `json:"extended_tenure"`
	GracePeriod    int     `json:"grace_period"`
	InterestWaiver int     `json:"interest_waiver"`
	TotalAmount    float64 `json:"total_amount"`
	Description    string  `json:"description"`
}

// PlanPair holds the two alternative offers generated together.
// Plan B is always weakly more lenient than Plan A.
type PlanPair struct {
	PlanA PlanTerms `json:"plan_a"`
	PlanB PlanTerms `json:"plan_b"`
}

// EMIRecommendation is a persisted restructuring offer.
type EMIRecommendation struct {
	ID             int64                `json:"id" db:"id"`
	BorrowerID     int64                `json:"borrower_id" db:"borrower_id"`
	ManagerID      *int64               `json:"manager_id,omitempty" db:"manager_id"`
	RiskLevel      RiskLevel            `json:"risk_level" db:"risk_level"`
	SuggestedEMI   int                  `json:"suggested_emi" db:"suggested_emi"`
	ExtendedTenure int                  `json:"extended_tenure" db:"extended_tenure"`
	GracePeriod    int                  `json:"grace_period" db:"grace_period"`
	InterestWaiver int                  `json:"interest_waiver" db:"interest_waiver"`
	PlanType       PlanType             `json:"plan_type" db:"plan_type"`
	Status         RecommendationStatus `json:"status" db:"status"`
	AutoRevised    bool                 `json:"auto_revised" db:"auto_revised"`
	IsAutomated    bool                 `json:"is_automated" db:"is_automated"`
	CreatedAt      time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at" db:"updated_at"`
}

// RecommendationCreate represents the data needed to create a recommendation.
type RecommendationCreate struct {
	BorrowerID     int64     `json:"borrower_id" validate:"required"`
	ManagerID      *int64    `json:"manager_id,omitempty"`
	RiskLevel      RiskLevel `json:"risk_level"`
	SuggestedEMI   int       `json:"suggested_emi"`
	ExtendedTenure int       `json:"extended_tenure"`
	GracePeriod    int       `json:"grace_period"`
	InterestWaiver int       `json:"interest_waiver"`
	PlanType       PlanType  `json:"plan_type"`
	AutoRevised    bool      `json:"auto_revised"`
	IsAutomated    bool      `json:"is_automated"`
}

// Terms returns the recommendation's financial terms.
func (r *EMIRecommendation) Terms() PlanTerms {
	return PlanTerms{
		SuggestedEMI:   r.SuggestedEMI,
		ExtendedTenure: r.ExtendedTenure,
		GracePeriod:    r.GracePeriod,
		InterestWaiver: r.InterestWaiver,
	}
}
