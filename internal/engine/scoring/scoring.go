// Package scoring combines the message, communication, financial and
// classifier signals into one composite distress score and stress tier.
package scoring

import (
	"context"
	"math"

	"go.uber.org/zap"

	"repayment-negotiation-engine/internal/engine/signals"
	"repayment-negotiation-engine/internal/models"
	"repayment-negotiation-engine/internal/utils"
)

// Signal weights. The classifier output dominates the blend.
const (
	classifierWeight    = 0.60
	messageWeight       = 0.15
	financialWeight     = 0.15
	communicationWeight = 0.10
)

// SeverityClassifier scores message text via the external classifier,
// falling back internally so it never fails.
type SeverityClassifier interface {
	Classify(ctx context.Context, text string) models.ClassifierSignal
}

// Scorer runs the composite scoring pipeline.
type Scorer struct {
	classifier SeverityClassifier
}

// NewScorer creates a composite scorer.
func NewScorer(classifier SeverityClassifier) *Scorer {
	return &Scorer{classifier: classifier}
}

// Score computes the composite analysis for one inbound message.
// responseHours is the borrower's response latency; pass 0 when unknown.
func (s *Scorer) Score(ctx context.Context, text string, borrower *models.Borrower, responseHours float64) models.CompositeAnalysis {
	// Degenerate but defined case: nothing to analyze.
	msgSignal := signals.AnalyzeMessage(text)
	if msgSignal.PrimaryIssue == "No message provided" {
		return models.CompositeAnalysis{
			CompositeScore:   0,
			StressLevel:      models.StressLow,
			PrimaryIssue:     msgSignal.PrimaryIssue,
			WillingnessToPay: "Unknown",
			Breakdown: models.ScoreBreakdown{
				Message: msgSignal,
			},
		}
	}

	commSignal := signals.AnalyzeCommunication(responseHours, borrower.OverdueDays)
	finSignal := signals.AnalyzeFinancial(borrower)
	clsSignal := s.classifier.Classify(ctx, text)

	composite := clampScore(int(math.Round(
		float64(clsSignal.Score)*classifierWeight +
			float64(msgSignal.Score)*messageWeight +
			float64(finSignal.Score)*financialWeight +
			float64(commSignal.Score)*communicationWeight,
	)))

	stress := DetermineStressLevel(composite)

	utils.GetLogger().Debug("Composite score computed",
		zap.Int64("borrower_id", borrower.ID),
		zap.Int("composite", composite),
		zap.String("stress", string(stress)),
		zap.Bool("classifier_ml", clsSignal.IsML),
	)

	return models.CompositeAnalysis{
		CompositeScore:   composite,
		StressLevel:      stress,
		PrimaryIssue:     msgSignal.PrimaryIssue,
		WillingnessToPay: determineWillingness(msgSignal, finSignal),
		Breakdown: models.ScoreBreakdown{
			Message:       msgSignal,
			Communication: commSignal,
			Financial:     finSignal,
			Classifier:    clsSignal,
		},
	}
}

// DetermineStressLevel maps a composite score to its stress tier.
// Thresholds are inclusive lower bounds.
func DetermineStressLevel(score int) models.StressLevel {
	switch {
	case score >= 90:
		return models.StressCritical
	case score >= 70:
		return models.StressHigh
	case score >= 40:
		return models.StressModerate
	default:
		return models.StressLow
	}
}

// determineWillingness resolves willingness-to-pay in fixed precedence order.
func determineWillingness(msg models.MessageSignal, fin models.FinancialSignal) string {
	switch {
	case msg.ShowsWillingness:
		return "Will Pay"
	case msg.HasRefusal:
		return "Refusal"
	case fin.IsOverdue && fin.Score > 70:
		return "Struggling"
	default:
		return "Likely to Pay"
	}
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
