// Package cache stores the latest behavioral analysis per borrower in Redis
// so dashboards and repeat lookups avoid re-scoring.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"repayment-negotiation-engine/internal/models"
	"repayment-negotiation-engine/internal/utils"
)

// AnalysisCache caches composite analyses keyed by borrower ID.
type AnalysisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates an analysis cache backed by Redis. It pings the server so a
// misconfigured address fails at startup rather than on first use.
func New(ctx context.Context, addr, password string, ttl time.Duration) (*AnalysisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &AnalysisCache{client: client, ttl: ttl}, nil
}

func analysisKey(borrowerID int64) string {
	return fmt.Sprintf("analysis:%d", borrowerID)
}

// StoreAnalysis saves the borrower's latest composite analysis.
func (c *AnalysisCache) StoreAnalysis(ctx context.Context, borrowerID int64, analysis *models.CompositeAnalysis) error {
	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}

	if err := c.client.Set(ctx, analysisKey(borrowerID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache analysis: %w", err)
	}

	return nil
}

// GetAnalysis returns the cached analysis for a borrower, or nil on a miss.
func (c *AnalysisCache) GetAnalysis(ctx context.Context, borrowerID int64) (*models.CompositeAnalysis, error) {
	data, err := c.client.Get(ctx, analysisKey(borrowerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached analysis: %w", err)
	}

	var analysis models.CompositeAnalysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		// A corrupt entry is treated as a miss.
		utils.GetLogger().Warn("Dropping corrupt cached analysis",
			zap.Int64("borrower_id", borrowerID), zap.Error(err))
		_ = c.client.Del(ctx, analysisKey(borrowerID)).Err()
		return nil, nil
	}

	return &analysis, nil
}

// InvalidateAnalysis removes the cached analysis for a borrower.
func (c *AnalysisCache) InvalidateAnalysis(ctx context.Context, borrowerID int64) error {
	return c.client.Del(ctx, analysisKey(borrowerID)).Err()
}

// Close releases the underlying Redis connection.
func (c *AnalysisCache) Close() error {
	return c.client.Close()
}
