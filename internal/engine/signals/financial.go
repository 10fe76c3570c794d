// Package signals derives distress signals from borrower messages and
// structured borrower attributes.
package signals

import (
	"math"

	"repayment-negotiation-engine/internal/models"
)

// AnalyzeCommunication scores communication patterns from response latency
// (hours) and days past due. Scores are clamped to [0,100].
func AnalyzeCommunication(responseHours float64, daysPastDue int) models.CommunicationSignal {
	score := 50 // baseline

	if responseHours > 0 {
		switch {
		case responseHours < 2:
			score -= 10 // quick response, lower stress
		case responseHours > 48:
			score += 20
		case responseHours > 24:
			score += 10
		}
	}

	switch {
	case daysPastDue > 90:
		score += 40
	case daysPastDue > 60:
		score += 30
	case daysPastDue > 30:
		score += 20
	case daysPastDue > 7:
		score += 10
	case daysPastDue < 7:
		score -= 10
	}

	return models.CommunicationSignal{
		Score:         clamp(score),
		ResponseHours: responseHours,
		DaysPastDue:   daysPastDue,
	}
}

// AnalyzeFinancial scores financial pressure from loan figures and overdue
// status. Non-finite loan figures are treated as zero so the plan tables
// never see NaN. Scores are clamped to [0,100].
func AnalyzeFinancial(b *models.Borrower) models.FinancialSignal {
	score := 40 // baseline

	loanAmount := sanitize(b.LoanAmount)
	emiAmount := sanitize(b.EMIAmount)
	outstanding := sanitize(b.OutstandingBalance)

	var emiRatio, balanceRatio float64

	if emiAmount > 0 && loanAmount > 0 {
		emiRatio = emiAmount / loanAmount
		switch {
		case emiRatio > 0.15:
			score += 15 // high EMI burden
		case emiRatio > 0.10:
			score += 10
		case emiRatio < 0.05:
			score -= 10
		}
	}

	if outstanding > 0 && loanAmount > 0 {
		balanceRatio = outstanding / loanAmount
		switch {
		case balanceRatio > 0.80:
			score += 20 // most of the loan still unpaid
		case balanceRatio > 0.50:
			score += 10
		case balanceRatio < 0.20:
			score -= 15
		}
	}

	if b.IsOverdue {
		score += 15
		switch {
		case b.OverdueDays > 90:
			score += 25
		case b.OverdueDays > 60:
			score += 15
		case b.OverdueDays > 30:
			score += 10
		}
	}

	return models.FinancialSignal{
		Score:        clamp(score),
		EMIRatio:     emiRatio,
		BalanceRatio: balanceRatio,
		IsOverdue:    b.IsOverdue,
	}
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
