// Package classifier wraps the external message severity classifier behind a
// bounded-timeout HTTP call with a guaranteed heuristic fallback.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"repayment-negotiation-engine/internal/models"
	"repayment-negotiation-engine/internal/utils"
)

// severityScores maps classifier severities to numeric scores.
var severityScores = map[string]int{
	"Low":      25,
	"Medium":   55,
	"High":     85,
	"Critical": 95,
}

// Heuristic fallback keyword buckets, used when the classifier is
// unreachable or returns something unusable.
var (
	highStressKeywords = []string{
		"lost my job", "loss my job", "no job", "medical emergency", "medical issue",
		"hospital", "can't pay", "cant pay", "cannot pay", "unable to pay", "no money",
		"pressure", "struggling", "crisis", "layoff", "fired", "surgery", "accident",
	}
	moderateStressKeywords = []string{
		"delay", "need time", "difficulty", "hardship", "trouble", "late",
		"financial issue", "salary delay", "business slow", "this week", "next week",
	}
	lowStressKeywords = []string{"remind me", "later", "busy", "soon", "tomorrow", "paying"}
)

// Request is the classifier wire request.
type Request struct {
	Text string `json:"text"`
}

// Response is the classifier wire response.
type Response struct {
	Severity          string  `json:"severity"`
	RecommendedAction string  `json:"recommended_action"`
	Confidence        float64 `json:"confidence,omitempty"`
}

// Adapter calls the external severity classifier.
type Adapter struct {
	url    string
	client *http.Client
}

// New creates a classifier adapter. An empty URL disables the remote call and
// the adapter always answers from the heuristic.
func New(url string, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Adapter{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Classify scores the message text. It never returns an error: any failure of
// the remote classifier falls back to the keyword heuristic and the result is
// marked as non-ML-derived.
func (a *Adapter) Classify(ctx context.Context, text string) models.ClassifierSignal {
	logger := utils.GetLogger()

	if a.url == "" {
		return heuristicSignal(text)
	}

	resp, err := a.call(ctx, text)
	if err != nil {
		logger.Warn("Classifier unavailable, falling back to heuristic", zap.Error(err))
		return heuristicSignal(text)
	}

	score, ok := severityScores[resp.Severity]
	if !ok {
		logger.Warn("Classifier returned unknown severity, falling back to heuristic",
			zap.String("severity", resp.Severity))
		return heuristicSignal(text)
	}

	confidence := resp.Confidence
	if confidence == 0 {
		confidence = 1.0
	}

	return models.ClassifierSignal{
		Score:             score,
		Severity:          resp.Severity,
		RecommendedAction: resp.RecommendedAction,
		Confidence:        confidence,
		IsML:              true,
	}
}

func (a *Adapter) call(ctx context.Context, text string) (*Response, error) {
	body, err := json.Marshal(Request{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var result Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode classifier response: %w", err)
	}

	return &result, nil
}

// heuristicSignal buckets the text by stress keywords: High 85, Moderate 60,
// Low 30, otherwise 50.
func heuristicSignal(text string) models.ClassifierSignal {
	lower := strings.ToLower(text)

	score := 50
	severity := "Unknown"
	switch {
	case containsAny(lower, highStressKeywords):
		score, severity = 85, "High"
	case containsAny(lower, moderateStressKeywords):
		score, severity = 60, "Moderate"
	case containsAny(lower, lowStressKeywords):
		score, severity = 30, "Low"
	}

	return models.ClassifierSignal{
		Score:    score,
		Severity: severity,
		IsML:     false,
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
