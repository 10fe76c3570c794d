package risksync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"repayment-negotiation-engine/internal/models"
)

type stubDirectory struct {
	executive *models.FieldExecutive
	err       error
	lastQuery string
}

func (d *stubDirectory) FindByRegion(_ context.Context, region string) (*models.FieldExecutive, error) {
	d.lastQuery = region
	return d.executive, d.err
}

func analysisWith(score int, stress models.StressLevel) *models.CompositeAnalysis {
	return &models.CompositeAnalysis{
		CompositeScore: score,
		StressLevel:    stress,
	}
}

func TestMapStressLevel(t *testing.T) {
	tests := []struct {
		stress models.StressLevel
		want   models.RiskLevel
	}{
		{models.StressLow, models.RiskLevelNormal},
		{models.StressModerate, models.RiskLevelModerate},
		{models.StressHigh, models.RiskLevelHigh},
		{models.StressCritical, models.RiskLevelCritical},
		{models.StressUnknown, models.RiskLevelPending},
		{models.StressLevel("garbage"), models.RiskLevelPending},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MapStressLevel(tt.stress), "stress=%s", tt.stress)
	}
}

func TestSyncNoOverrideBelowThreshold(t *testing.T) {
	s := New(nil)
	b := &models.Borrower{ID: 1}
	// Job keywords map to HIGH in the override classifier, but composite 70
	// does not clear the >70 gate.
	analysis := analysisWith(70, models.StressModerate)

	result := s.Sync(context.Background(), b, "problems at work", analysis)

	assert.Equal(t, models.RiskLevelModerate, result.RiskLevel)
	assert.False(t, result.Overridden)
}

func TestSyncOverrideAboveThreshold(t *testing.T) {
	s := New(nil)
	b := &models.Borrower{ID: 1}
	analysis := analysisWith(71, models.StressModerate)

	result := s.Sync(context.Background(), b, "problems at work", analysis)

	assert.Equal(t, models.RiskLevelHigh, result.RiskLevel)
	assert.True(t, result.Overridden)
}

func TestSyncAgreementIsNotAnOverride(t *testing.T) {
	s := New(nil)
	b := &models.Borrower{ID: 1}
	analysis := analysisWith(80, models.StressHigh)

	result := s.Sync(context.Background(), b, "struggling badly", analysis)

	assert.Equal(t, models.RiskLevelHigh, result.RiskLevel)
	assert.False(t, result.Overridden)
}

func TestOverrideTier(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		analysis *models.CompositeAnalysis
		want     models.RiskLevel
	}{
		{
			"total refusal at high stress",
			"I can't pay, no money",
			analysisWith(80, models.StressHigh),
			models.RiskLevelCritical,
		},
		{
			"job issue",
			"I lost my job",
			analysisWith(50, models.StressModerate),
			models.RiskLevelHigh,
		},
		{
			"medical issue",
			"medical bills are piling up",
			analysisWith(50, models.StressModerate),
			models.RiskLevelHigh,
		},
		{
			"pressure",
			"your reminders add pressure",
			analysisWith(50, models.StressModerate),
			models.RiskLevelModerate,
		},
		{
			"will pay",
			"will pay tomorrow, please confirm",
			analysisWith(20, models.StressLow),
			models.RiskLevelNormal,
		},
		{
			"nothing recognizable",
			"hello",
			analysisWith(50, models.StressUnknown),
			models.RiskLevelPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OverrideTier(tt.text, tt.analysis))
		})
	}
}

func TestOverrideTierMLSignals(t *testing.T) {
	analysis := analysisWith(80, models.StressModerate)
	analysis.Breakdown.Classifier = models.ClassifierSignal{
		Severity: "High",
		IsML:     true,
	}
	assert.Equal(t, models.RiskLevelHigh, OverrideTier("hello", analysis))

	analysis.Breakdown.Classifier = models.ClassifierSignal{
		Severity:          "Critical",
		RecommendedAction: "LegalAction",
		IsML:              true,
	}
	assert.Equal(t, models.RiskLevelCritical, OverrideTier("hello", analysis))
}

func TestMatchRegion(t *testing.T) {
	region, ok := MatchRegion("12 MG Road, Bengaluru 560001")
	assert.True(t, ok)
	assert.Equal(t, "Bengaluru", region)

	// Two regions in one address is ambiguous.
	_, ok = MatchRegion("between Mysuru and Mangaluru highway")
	assert.False(t, ok)

	_, ok = MatchRegion("44 Park Street, Kolkata")
	assert.False(t, ok)

	_, ok = MatchRegion("")
	assert.False(t, ok)
}

func TestSyncAssignsExecutiveForElevatedTiers(t *testing.T) {
	dir := &stubDirectory{executive: &models.FieldExecutive{ID: 9, Name: "Ramesh Gowda", Region: "Bengaluru"}}
	s := New(dir)
	b := &models.Borrower{ID: 1, Address: "MG Road, Bengaluru"}

	result := s.Sync(context.Background(), b, "I lost my job", analysisWith(85, models.StressHigh))

	assert.Equal(t, models.RiskLevelHigh, result.RiskLevel)
	assert.NotNil(t, result.AssignedExecutive)
	assert.Equal(t, int64(9), result.AssignedExecutive.ID)
	assert.Equal(t, "Bengaluru", dir.lastQuery)
}

func TestSyncNoAssignmentBelowHigh(t *testing.T) {
	dir := &stubDirectory{executive: &models.FieldExecutive{ID: 9}}
	s := New(dir)
	b := &models.Borrower{ID: 1, Address: "MG Road, Bengaluru"}

	result := s.Sync(context.Background(), b, "small delay, paying soon", analysisWith(30, models.StressLow))

	assert.Equal(t, models.RiskLevelNormal, result.RiskLevel)
	assert.Nil(t, result.AssignedExecutive)
	assert.Empty(t, dir.lastQuery)
}

func TestSyncAssignmentToleratesDirectoryFailure(t *testing.T) {
	dir := &stubDirectory{err: errors.New("db down")}
	s := New(dir)
	b := &models.Borrower{ID: 1, Address: "Bengaluru"}

	result := s.Sync(context.Background(), b, "I lost my job", analysisWith(85, models.StressHigh))

	assert.Equal(t, models.RiskLevelHigh, result.RiskLevel)
	assert.Nil(t, result.AssignedExecutive)
}
