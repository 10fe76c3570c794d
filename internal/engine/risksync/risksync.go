// Package risksync keeps the borrower's persisted risk tier in lockstep with
// the latest behavioral analysis and triggers field-executive assignment for
// elevated tiers.
package risksync

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"repayment-negotiation-engine/internal/models"
	"repayment-negotiation-engine/internal/utils"
)

// stressToRisk is the source-of-truth mapping from stress tier to risk tier.
var stressToRisk = map[models.StressLevel]models.RiskLevel{
	models.StressLow:      models.RiskLevelNormal,
	models.StressModerate: models.RiskLevelModerate,
	models.StressHigh:     models.RiskLevelHigh,
	models.StressCritical: models.RiskLevelCritical,
	models.StressUnknown:  models.RiskLevelPending,
}

// OperationalRegions are the regions with an on-duty field executive.
var OperationalRegions = []string{
	"Bengaluru", "Mysuru", "Udupi", "Shivamogga", "Belagavi", "Mangaluru", "Hubballi",
}

// ExecutiveDirectory looks up the on-duty executive for a region.
type ExecutiveDirectory interface {
	FindByRegion(ctx context.Context, region string) (*models.FieldExecutive, error)
}

// Synchronizer resolves the borrower's risk tier after each analysis.
type Synchronizer struct {
	directory ExecutiveDirectory
}

// New creates a synchronizer. A nil directory disables auto-assignment.
func New(directory ExecutiveDirectory) *Synchronizer {
	return &Synchronizer{directory: directory}
}

// MapStressLevel returns the risk tier derived from a stress tier.
func MapStressLevel(stress models.StressLevel) models.RiskLevel {
	if risk, ok := stressToRisk[stress]; ok {
		return risk
	}
	return models.RiskLevelPending
}

// Result is the outcome of a risk sync pass.
type Result struct {
	RiskLevel         models.RiskLevel
	Overridden        bool
	AssignedExecutive *models.FieldExecutive
}

// Sync resolves the risk tier for an analysis and, for HIGH/CRITICAL tiers,
// attempts region-based executive assignment from the borrower's address.
func (s *Synchronizer) Sync(ctx context.Context, borrower *models.Borrower, text string, analysis *models.CompositeAnalysis) Result {
	logger := utils.GetLogger()

	result := Result{RiskLevel: MapStressLevel(analysis.StressLevel)}

	// The secondary classifier may disagree with the blended score; it only
	// wins when the composite score clears 70.
	if override := OverrideTier(text, analysis); override != models.RiskLevelPending &&
		override != result.RiskLevel && analysis.CompositeScore > 70 {
		logger.Info("Risk tier overridden by secondary classifier",
			zap.Int64("borrower_id", borrower.ID),
			zap.String("mapped", string(result.RiskLevel)),
			zap.String("override", string(override)),
			zap.Int("composite", analysis.CompositeScore),
		)
		result.RiskLevel = override
		result.Overridden = true
	}

	if result.RiskLevel.IsElevated() {
		result.AssignedExecutive = s.assignExecutive(ctx, borrower)
	}

	return result
}

// OverrideTier is the secondary independent heuristic risk classifier. It
// duplicates signals the composite scorer already blends and can disagree
// with it; the disagreement is intentional and contained here.
func OverrideTier(text string, analysis *models.CompositeAnalysis) models.RiskLevel {
	lower := strings.ToLower(text)
	stress := analysis.StressLevel
	cls := analysis.Breakdown.Classifier

	hasJobIssue := containsAny(lower, []string{"job", "work", "unemployed", "layoff"})
	hasMedicalIssue := containsAny(lower, []string{"medical", "health", "hospital", "sick", "emergency"})
	hasPressure := containsAny(lower, []string{"pressure", "stressed", "reminders"})
	hasTotalRefusal := containsAny(lower, []string{"can't pay", "won't pay", "no money"}) &&
		!analysis.Breakdown.Message.ShowsWillingness

	if cls.IsML {
		if cls.Severity == "High" {
			return models.RiskLevelHigh
		}
		if cls.RecommendedAction == "LegalAction" {
			return models.RiskLevelCritical
		}
	}

	switch {
	case hasTotalRefusal && stress == models.StressHigh:
		return models.RiskLevelCritical
	case stress == models.StressHigh || hasJobIssue || hasMedicalIssue:
		return models.RiskLevelHigh
	case stress == models.StressModerate || hasPressure:
		return models.RiskLevelModerate
	case stress == models.StressLow || containsAny(lower, []string{"soon", "tomorrow", "next week", "confirm", "remind", "pay later", "will pay"}):
		return models.RiskLevelNormal
	}

	return models.RiskLevelPending
}

// MatchRegion matches the borrower's free-text address against the
// operational regions. Assignment requires exactly one match.
func MatchRegion(address string) (string, bool) {
	lower := strings.ToLower(address)

	var matched string
	count := 0
	for _, region := range OperationalRegions {
		if strings.Contains(lower, strings.ToLower(region)) {
			matched = region
			count++
		}
	}

	if count != 1 {
		return "", false
	}
	return matched, true
}

func (s *Synchronizer) assignExecutive(ctx context.Context, borrower *models.Borrower) *models.FieldExecutive {
	logger := utils.GetLogger()

	if s.directory == nil || borrower.Address == "" {
		return nil
	}

	region, ok := MatchRegion(borrower.Address)
	if !ok {
		logger.Debug("No unambiguous region match for assignment",
			zap.Int64("borrower_id", borrower.ID),
			zap.String("address", borrower.Address))
		return nil
	}

	executive, err := s.directory.FindByRegion(ctx, region)
	if err != nil || executive == nil {
		if err != nil {
			logger.Warn("Executive lookup failed", zap.String("region", region), zap.Error(err))
		}
		return nil
	}

	logger.Info("Assigned field executive",
		zap.Int64("borrower_id", borrower.ID),
		zap.String("region", region),
		zap.String("executive", executive.Name))

	return executive
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
