package analyst

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"recoveryos/internal/models"

	"go.uber.org/zap"
)

// 基线计算参数
const (
	// MinCheckinsForBaseline 计算个人基线所需的最少打卡数
	MinCheckinsForBaseline = 3
	// BaselineSampleSize 基线取样上限（最早的 10 条打卡）
	BaselineSampleSize = 10
)

// 人群默认基线（打卡不足时使用）
const (
	defaultSleepHours = 7.0
	defaultIsolation  = 30.0
	defaultAdherence  = 70.0
	defaultCravings   = 40.0
	defaultMoodTrend  = 0.0
)

// CalculateBaseline 从打卡历史计算用户基线
// 取最早的 BaselineSampleSize 条记录求均值；不足 MinCheckinsForBaseline 条时返回人群默认值
func CalculateBaseline(history []models.CheckIn) models.Baseline {
	sample := history
	if len(sample) > BaselineSampleSize {
		sample = sample[:BaselineSampleSize]
	}

	if len(sample) < MinCheckinsForBaseline {
		return models.Baseline{
			SleepHours: defaultSleepHours,
			Isolation:  defaultIsolation,
			Adherence:  defaultAdherence,
			Cravings:   defaultCravings,
			MoodTrend:  defaultMoodTrend,
			IsDefault:  true,
		}
	}

	var sleepSum, isolationSum, adherenceSum, cravingsSum, moodSum float64
	for _, c := range sample {
		sleepSum += c.SleepHours
		isolationSum += float64(c.Isolation)
		adherenceSum += float64(c.Adherence)
		cravingsSum += float64(c.Cravings)
		moodSum += float64(c.MoodTrend)
	}

	n := float64(len(sample))
	return models.Baseline{
		SleepHours: sleepSum / n,
		Isolation:  isolationSum / n,
		Adherence:  adherenceSum / n,
		Cravings:   cravingsSum / n,
		MoodTrend:  moodSum / n,
		IsDefault:  false,
	}
}

// BaselineCache 用户基线缓存
// 基线按月刷新（TTL 控制），过期后由下一次分析重新计算
type BaselineCache struct {
	kv     KVStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewBaselineCache 创建基线缓存
func NewBaselineCache(kv KVStore, ttl time.Duration, logger *zap.Logger) *BaselineCache {
	return &BaselineCache{
		kv:     kv,
		ttl:    ttl,
		logger: logger,
	}
}

func baselineKey(userID string) string {
	return fmt.Sprintf("recovery:baseline:%s", userID)
}

// GetOrCompute 读取缓存的基线，未命中时从历史计算并写回
// 缓存故障只记录日志，不影响分析（降级为即时计算）
func (b *BaselineCache) GetOrCompute(ctx context.Context, userID string, history []models.CheckIn) models.Baseline {
	key := baselineKey(userID)

	val, err := b.kv.Get(ctx, key)
	if err == nil {
		var baseline models.Baseline
		if jsonErr := json.Unmarshal([]byte(val), &baseline); jsonErr == nil {
			return baseline
		}
		b.logger.Warn("Failed to decode cached baseline, recomputing",
			zap.String("user_id", userID),
			zap.String("key", key),
		)
	} else if err != ErrCacheMiss {
		b.logger.Warn("Failed to read baseline cache",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	baseline := CalculateBaseline(history)

	jsonData, err := json.Marshal(baseline)
	if err == nil {
		if setErr := b.kv.Set(ctx, key, string(jsonData), b.ttl); setErr != nil {
			b.logger.Warn("Failed to write baseline cache",
				zap.String("user_id", userID),
				zap.Error(setErr),
			)
		}
	}

	b.logger.Debug("Computed baseline",
		zap.String("user_id", userID),
		zap.Bool("is_default", baseline.IsDefault),
	)

	return baseline
}

// Invalidate 删除用户的缓存基线（打卡数据被修正后调用）
func (b *BaselineCache) Invalidate(ctx context.Context, userID string) error {
	return b.kv.Delete(ctx, baselineKey(userID))
}
