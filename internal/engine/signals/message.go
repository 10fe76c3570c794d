// Package signals derives distress signals from borrower messages and
// structured borrower attributes.
package signals

import (
	"strings"

	"repayment-negotiation-engine/internal/models"
)

// issueCategory couples a keyword set with a fixed severity. Categories are
// scanned in order; the highest severity wins and ties break on table order.
type issueCategory struct {
	Label    string
	Keywords []string
	Severity int
}

// issueTable is the ordered issue classifier. Order matters for tie-breaks.
var issueTable = []issueCategory{
	{Label: "Job Loss", Keywords: []string{"lost job", "lost my job", "no job", "unemployed", "layoff", "fired"}, Severity: 90},
	{Label: "Medical Emergency", Keywords: []string{"medical", "hospital", "emergency", "surgery", "sick", "health"}, Severity: 85},
	{Label: "Transport Issue", Keywords: []string{"transport", "vehicle", "accident", "breakdown"}, Severity: 60},
	{Label: "Family Emergency", Keywords: []string{"family", "death", "marriage", "divorce"}, Severity: 75},
	{Label: "Cash Flow Problem", Keywords: []string{"short of money", "cash flow", "shortage", "delayed payment"}, Severity: 70},
	{Label: "Harassment/Pressure", Keywords: []string{"pressure", "stressed", "harassment", "threatened"}, Severity: 65},
	{Label: "Financial Crisis", Keywords: []string{"can't pay", "won't pay", "no money", "cannot afford"}, Severity: 95},
	{Label: "Temporary Setback", Keywords: []string{"temporary", "this month", "next month", "delayed salary", "waiting for salary", "salary delay"}, Severity: 55},
}

const (
	baselineSeverity = 30
	defaultIssue     = "General Financial Difficulty"
	noMessageIssue   = "No message provided"
)

var willingnessKeywords = []string{
	"want to pay", "will pay", "i'll pay", "i will pay", "trying to", "working on", "pay by",
}

// AnalyzeMessage extracts an issue category, a severity score and
// willingness/refusal flags from raw message text. Empty input yields the
// defined degenerate zero result, not an error.
func AnalyzeMessage(text string) models.MessageSignal {
	if strings.TrimSpace(text) == "" {
		return models.MessageSignal{
			Score:        0,
			PrimaryIssue: noMessageIssue,
		}
	}

	lower := strings.ToLower(text)

	severity := baselineSeverity
	issue := defaultIssue
	for _, cat := range issueTable {
		if !containsAny(lower, cat.Keywords) {
			continue
		}
		if cat.Severity > severity {
			severity = cat.Severity
			issue = cat.Label
		}
	}

	willing := containsAny(lower, willingnessKeywords)
	if willing && severity > 50 {
		severity -= 15 // willingness softens the signal
	}

	return models.MessageSignal{
		Score:            severity,
		PrimaryIssue:     issue,
		ShowsWillingness: willing,
		HasRefusal:       strings.Contains(lower, "can't pay") || strings.Contains(lower, "won't pay"),
	}
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
