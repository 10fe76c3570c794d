// Package models defines the data structures for the repayment negotiation engine.
package models

// MessageSignal is the output of the message keyword analyzer.
type MessageSignal struct {
	Score            int    `json:"score"`
	PrimaryIssue     string `json:"primary_issue"`
	ShowsWillingness bool   `json:"shows_willingness"`
	HasRefusal       bool   `json:"has_refusal"`
}

// CommunicationSignal is the output of the communication-pattern analyzer.
type CommunicationSignal struct {
	Score         int     `json:"score"`
	ResponseHours float64 `json:"response_hours"`
	DaysPastDue   int     `json:"days_past_due"`
}

// FinancialSignal is the output of the financial-indicator analyzer.
type FinancialSignal struct {
	Score        int     `json:"score"`
	EMIRatio     float64 `json:"emi_ratio"`
	BalanceRatio float64 `json:"balance_ratio"`
	IsOverdue    bool    `json:"is_overdue"`
}

// ClassifierSignal is the output of the external severity classifier adapter.
// IsML is false when the score came from the heuristic fallback.
type ClassifierSignal struct {
	Score             int     `json:"score"`
	Severity          string  `json:"severity,omitempty"`
	RecommendedAction string  `json:"recommended_action,omitempty"`
	Confidence        float64 `json:"confidence,omitempty"`
	IsML              bool    `json:"is_ml"`
}

// ScoreBreakdown retains the per-signal scores for audit and testability.
type ScoreBreakdown struct {
	Message       MessageSignal       `json:"message"`
	Communication CommunicationSignal `json:"communication"`
	Financial     FinancialSignal     `json:"financial"`
	Classifier    ClassifierSignal    `json:"classifier"`
}

// CompositeAnalysis is the full output of the composite scorer.
type CompositeAnalysis struct {
	CompositeScore   int            `json:"composite_score"`
	StressLevel      StressLevel    `json:"stress_level"`
	PrimaryIssue     string         `json:"primary_issue"`
	WillingnessToPay string         `json:"willingness_to_pay"`
	Breakdown        ScoreBreakdown `json:"breakdown"`
}
