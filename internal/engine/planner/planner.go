// Package planner derives alternative EMI restructuring offers from the
// borrower's stress tier and loan figures.
package planner

import (
	"math"

	"repayment-negotiation-engine/internal/models"
)

// reliefFactors are the per-tier relief, tenure and grace parameters.
type reliefFactors struct {
	Relief float64
	Tenure int
	Grace  int
}

// factorsFor returns the relief table row for a stress tier. Only High takes
// the deepest relief row; all other tiers (including Critical) fall through
// to the standard row.
func factorsFor(stress models.StressLevel) reliefFactors {
	switch stress {
	case models.StressHigh:
		return reliefFactors{Relief: 0.45, Tenure: 12, Grace: 30}
	case models.StressModerate:
		return reliefFactors{Relief: 0.65, Tenure: 8, Grace: 15}
	default:
		return reliefFactors{Relief: 0.80, Tenure: 4, Grace: 7}
	}
}

// GeneratePlans produces the Plan A / Plan B offer pair for a borrower.
// Plan B is always weakly more lenient than Plan A on every dimension.
// Missing figures fall back: outstanding balance to the loan amount, EMI to
// 5% of the loan amount. Non-finite figures are treated as zero.
func GeneratePlans(borrower *models.Borrower, stress models.StressLevel) models.PlanPair {
	loanAmount := sanitize(borrower.LoanAmount)
	balance := sanitize(borrower.OutstandingBalance)
	if balance == 0 {
		balance = loanAmount
	}
	baseEMI := sanitize(borrower.EMIAmount)
	if baseEMI == 0 {
		baseEMI = loanAmount * 0.05
	}

	f := factorsFor(stress)

	planA := models.PlanTerms{
		SuggestedEMI:   round(baseEMI * f.Relief * 1.2),
		ExtendedTenure: f.Tenure,
		GracePeriod:    f.Grace,
		InterestWaiver: 0,
		TotalAmount:    balance,
		Description:    "Balanced relief plan",
	}
	if borrower.OverdueDays > 45 {
		planA.InterestWaiver = 2
	}

	planB := models.PlanTerms{
		SuggestedEMI:   round(baseEMI * f.Relief),
		ExtendedTenure: f.Tenure + 6,
		GracePeriod:    f.Grace + 10,
		InterestWaiver: 2,
		TotalAmount:    balance,
		Description:    "Maximum relief plan",
	}
	if borrower.OverdueDays > 45 {
		planB.InterestWaiver = 5
	}

	return models.PlanPair{PlanA: planA, PlanB: planB}
}

// GenerateRevision produces the fixed lenient plan offered automatically
// after a rejection.
func GenerateRevision(loanAmount float64) models.PlanTerms {
	monthlyEMI := sanitize(loanAmount) / 12

	return models.PlanTerms{
		SuggestedEMI:   round(monthlyEMI * 0.45),
		ExtendedTenure: 12,
		GracePeriod:    30,
		Description:    "Auto-revised relief plan",
	}
}

func round(v float64) int {
	return int(math.Round(v))
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
