package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyRemoteSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "I lost my job", req.Text)

		json.NewEncoder(w).Encode(Response{
			Severity:          "High",
			RecommendedAction: "OfferPlan",
			Confidence:        0.92,
		})
	}))
	defer server.Close()

	adapter := New(server.URL, 5*time.Second)
	signal := adapter.Classify(context.Background(), "I lost my job")

	assert.Equal(t, 85, signal.Score)
	assert.Equal(t, "High", signal.Severity)
	assert.Equal(t, "OfferPlan", signal.RecommendedAction)
	assert.InDelta(t, 0.92, signal.Confidence, 1e-9)
	assert.True(t, signal.IsML)
}

func TestClassifySeverityScores(t *testing.T) {
	tests := []struct {
		severity string
		score    int
	}{
		{"Low", 25},
		{"Medium", 55},
		{"High", 85},
		{"Critical", 95},
	}

	for _, tt := range tests {
		t.Run(tt.severity, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(Response{Severity: tt.severity})
			}))
			defer server.Close()

			signal := New(server.URL, time.Second).Classify(context.Background(), "text")
			assert.Equal(t, tt.score, signal.Score)
			assert.True(t, signal.IsML)
			// Missing confidence defaults to full confidence.
			assert.InDelta(t, 1.0, signal.Confidence, 1e-9)
		})
	}
}

func TestClassifyServerErrorFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	signal := New(server.URL, time.Second).Classify(context.Background(), "I lost my job and can't pay")

	assert.False(t, signal.IsML)
	assert.Equal(t, 85, signal.Score)
	assert.Equal(t, "High", signal.Severity)
}

func TestClassifyUnknownSeverityFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Response{Severity: "banana"})
	}))
	defer server.Close()

	signal := New(server.URL, time.Second).Classify(context.Background(), "salary delay this week")

	assert.False(t, signal.IsML)
	assert.Equal(t, 60, signal.Score)
	assert.Equal(t, "Moderate", signal.Severity)
}

func TestClassifyUnreachableFallsBack(t *testing.T) {
	adapter := New("http://127.0.0.1:1", 100*time.Millisecond)

	signal := adapter.Classify(context.Background(), "remind me tomorrow")

	assert.False(t, signal.IsML)
	assert.Equal(t, 30, signal.Score)
	assert.Equal(t, "Low", signal.Severity)
}

func TestClassifyNoURLUsesHeuristic(t *testing.T) {
	adapter := New("", time.Second)

	tests := []struct {
		name     string
		text     string
		score    int
		severity string
	}{
		{"high", "medical emergency in the family", 85, "High"},
		{"moderate", "need time, salary delay", 60, "Moderate"},
		{"low", "busy now, remind me later", 30, "Low"},
		{"neutral", "okay", 50, "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signal := adapter.Classify(context.Background(), tt.text)
			assert.Equal(t, tt.score, signal.Score)
			assert.Equal(t, tt.severity, signal.Severity)
			assert.False(t, signal.IsML)
		})
	}
}
