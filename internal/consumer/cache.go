package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"recoveryos/internal/analyst"
	"recoveryos/internal/models"

	"go.uber.org/zap"
)

// AnalysisCache 分析结果缓存
// 打卡事件处理完成后把最新结果写入 Redis，查询端直接读缓存
type AnalysisCache struct {
	kv     analyst.KVStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewAnalysisCache 创建分析结果缓存
func NewAnalysisCache(kv analyst.KVStore, ttl time.Duration, logger *zap.Logger) *AnalysisCache {
	return &AnalysisCache{
		kv:     kv,
		ttl:    ttl,
		logger: logger,
	}
}

func analysisKey(userID string) string {
	return fmt.Sprintf("recovery:user:%s:analysis", userID)
}

// StoreResult 写入最新分析结果（带 TTL）
func (c *AnalysisCache) StoreResult(ctx context.Context, userID string, result *models.PatternsAnalysisResult) error {
	jsonData, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis result: %w", err)
	}

	key := analysisKey(userID)
	if err := c.kv.Set(ctx, key, string(jsonData), c.ttl); err != nil {
		return fmt.Errorf("failed to set analysis cache: %w", err)
	}

	c.logger.Debug("Updated analysis cache",
		zap.String("key", key),
		zap.String("risk_band", string(result.RiskBand)),
	)

	return nil
}

// GetResult 读取缓存的分析结果
// 未命中返回 analyst.ErrCacheMiss
func (c *AnalysisCache) GetResult(ctx context.Context, userID string) (*models.PatternsAnalysisResult, error) {
	raw, err := c.kv.Get(ctx, analysisKey(userID))
	if err != nil {
		return nil, err
	}

	var result models.PatternsAnalysisResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached analysis: %w", err)
	}

	return &result, nil
}
