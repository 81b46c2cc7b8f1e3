package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"recoveryos/internal/config"
	"recoveryos/internal/models"
	"recoveryos/internal/orchestrator"
	"recoveryos/internal/redisx"
	"recoveryos/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Metrics 监控指标
type Metrics struct {
	mu sync.RWMutex

	// 消息处理统计
	MessagesProcessed int64 // 处理的消息总数
	MessagesSucceeded int64 // 成功处理的消息数
	MessagesFailed    int64 // 处理失败的消息数
	MessagesSkipped   int64 // 跳过的消息数（用户无打卡历史等）

	// 错误分类统计
	ErrorsParse          int64 // 解析错误
	ErrorsHistoryLoad    int64 // 打卡历史查询失败
	ErrorsAnalysisFailed int64 // 模式分析失败
	ErrorsCacheFailed    int64 // 缓存更新失败

	// 风险等级分布
	BandLow          int64
	BandModerate     int64
	BandElevated     int64
	BandHigh         int64
	BandInsufficient int64

	// 性能指标
	TotalProcessingTime time.Duration // 总处理时间
	LastProcessTime     time.Time     // 最后处理时间

	// 启动时间
	StartTime time.Time
}

// GetSnapshot 获取指标快照（线程安全）
func (m *Metrics) GetSnapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		MessagesProcessed:    m.MessagesProcessed,
		MessagesSucceeded:    m.MessagesSucceeded,
		MessagesFailed:       m.MessagesFailed,
		MessagesSkipped:      m.MessagesSkipped,
		ErrorsParse:          m.ErrorsParse,
		ErrorsHistoryLoad:    m.ErrorsHistoryLoad,
		ErrorsAnalysisFailed: m.ErrorsAnalysisFailed,
		ErrorsCacheFailed:    m.ErrorsCacheFailed,
		BandLow:              m.BandLow,
		BandModerate:         m.BandModerate,
		BandElevated:         m.BandElevated,
		BandHigh:             m.BandHigh,
		BandInsufficient:     m.BandInsufficient,
		TotalProcessingTime:  m.TotalProcessingTime,
		LastProcessTime:      m.LastProcessTime,
		StartTime:            m.StartTime,
	}
}

// IncrementProcessed 增加处理计数
func (m *Metrics) IncrementProcessed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesProcessed++
}

// IncrementSucceeded 增加成功计数
func (m *Metrics) IncrementSucceeded(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesSucceeded++
	m.TotalProcessingTime += duration
	m.LastProcessTime = time.Now()
}

// IncrementFailed 增加失败计数
func (m *Metrics) IncrementFailed(errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesFailed++
	switch errorType {
	case "parse":
		m.ErrorsParse++
	case "history_load":
		m.ErrorsHistoryLoad++
	case "analysis_failed":
		m.ErrorsAnalysisFailed++
	case "cache_failed":
		m.ErrorsCacheFailed++
	}
}

// IncrementSkipped 增加跳过计数
func (m *Metrics) IncrementSkipped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesSkipped++
}

// IncrementBand 记录风险等级分布
func (m *Metrics) IncrementBand(band models.RiskBand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch band {
	case models.RiskBandLow:
		m.BandLow++
	case models.RiskBandModerate:
		m.BandModerate++
	case models.RiskBandElevated:
		m.BandElevated++
	case models.RiskBandHigh:
		m.BandHigh++
	case models.RiskBandInsufficientData:
		m.BandInsufficient++
	}
}

// StreamConsumer 打卡事件 Redis Streams 消费者
type StreamConsumer struct {
	config      *config.Config
	redisClient *redis.Client
	checkins    *repository.CheckinsRepository
	orch        *orchestrator.Orchestrator
	cache       *AnalysisCache
	logger      *zap.Logger
	metrics     *Metrics
}

// NewStreamConsumer 创建 Streams 消费者
func NewStreamConsumer(
	cfg *config.Config,
	redisClient *redis.Client,
	checkins *repository.CheckinsRepository,
	orch *orchestrator.Orchestrator,
	cache *AnalysisCache,
	logger *zap.Logger,
) *StreamConsumer {
	return &StreamConsumer{
		config:      cfg,
		redisClient: redisClient,
		checkins:    checkins,
		orch:        orch,
		cache:       cache,
		logger:      logger,
		metrics: &Metrics{
			StartTime: time.Now(),
		},
	}
}

// GetMetrics 返回指标（测试与监控用）
func (c *StreamConsumer) GetMetrics() *Metrics {
	return c.metrics
}

// Start 启动消费者
func (c *StreamConsumer) Start(ctx context.Context) error {
	// 创建消费者组
	stream := c.config.Agents.EventStream
	if err := redisx.CreateConsumerGroup(ctx, c.redisClient, stream, c.config.Agents.ConsumerGroup); err != nil {
		return fmt.Errorf("failed to create consumer group for %s: %w", stream, err)
	}

	c.logger.Info("Stream consumer started",
		zap.String("consumer_group", c.config.Agents.ConsumerGroup),
		zap.String("consumer_name", c.config.Agents.ConsumerName),
		zap.String("stream", stream),
	)

	// 启动指标报告协程
	metricsCtx, metricsCancel := context.WithCancel(ctx)
	defer metricsCancel()
	go c.reportMetrics(metricsCtx)

	// 启动消费循环
	backoffDuration := time.Second // 初始退避时间
	maxBackoff := 30 * time.Second // 最大退避时间

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if err := c.consumeStream(ctx, stream); err != nil {
				c.logger.Error("Failed to consume stream",
					zap.Error(err),
					zap.Duration("backoff", backoffDuration),
				)

				// 指数退避：等待后重试
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoffDuration):
					// 指数退避，但不超过最大值
					backoffDuration *= 2
					if backoffDuration > maxBackoff {
						backoffDuration = maxBackoff
					}
				}
			} else {
				// 成功时重置退避时间
				backoffDuration = time.Second
			}
		}
	}
}

// consumeStream 消费单个 Stream
func (c *StreamConsumer) consumeStream(ctx context.Context, stream string) error {
	messages, err := redisx.ReadFromStream(
		ctx,
		c.redisClient,
		stream,
		c.config.Agents.ConsumerGroup,
		c.config.Agents.ConsumerName,
		int64(c.config.Agents.BatchSize),
	)
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	// 处理消息
	for _, msg := range messages {
		c.metrics.IncrementProcessed()
		if err := c.ProcessMessage(ctx, msg); err != nil {
			c.logger.Error("Failed to process message",
				zap.String("stream_id", msg.ID),
				zap.Error(err),
			)
			// 继续处理下一条消息，不中断
		}
	}

	return nil
}

// ProcessMessage 处理单条打卡事件
//
// 处理流程：
// 1. 解析打卡事件消息
// 2. 查询该用户的完整打卡历史
// 3. 运行模式分析（审计与信号写入由编排器完成）
// 4. 把分析结果写入 Redis 缓存
func (c *StreamConsumer) ProcessMessage(ctx context.Context, msg redisx.StreamMessage) error {
	startTime := time.Now()
	requestID := uuid.New().String()

	// 解析消息数据
	var dataStr string
	if val, ok := msg.Values["data"]; ok {
		if str, ok := val.(string); ok {
			dataStr = str
		} else {
			c.metrics.IncrementFailed("parse")
			return fmt.Errorf("invalid data format in message")
		}
	} else {
		c.metrics.IncrementFailed("parse")
		return fmt.Errorf("missing data field in message")
	}

	// 解析 JSON
	var event models.CheckInEvent
	if err := json.Unmarshal([]byte(dataStr), &event); err != nil {
		c.metrics.IncrementFailed("parse")
		c.logger.Error("Failed to parse message data",
			zap.String("stream_id", msg.ID),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to unmarshal message data: %w", err)
	}

	if event.UserID == "" {
		c.metrics.IncrementFailed("parse")
		return fmt.Errorf("missing user_id in check-in event")
	}

	c.logger.Debug("Processing check-in event",
		zap.String("request_id", requestID),
		zap.Int64("checkin_id", event.CheckinID),
	)

	// 1. 查询用户打卡历史
	history, err := c.checkins.GetCheckInHistory(ctx, event.UserID)
	if err != nil {
		c.metrics.IncrementFailed("history_load")
		c.logger.Error("Failed to load check-in history",
			zap.String("stream_id", msg.ID),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to load check-in history: %w", err)
	}

	if len(history) == 0 {
		// 事件引用的打卡已不存在（用户数据被清除等），忽略
		c.metrics.IncrementSkipped()
		c.logger.Warn("No check-in history for event",
			zap.String("stream_id", msg.ID),
			zap.String("request_id", requestID),
		)
		return nil
	}

	// 2. 运行模式分析
	result, err := c.orch.AnalyzeCheckIn(ctx, event.UserID, history)
	if err != nil {
		c.metrics.IncrementFailed("analysis_failed")
		c.logger.Error("Failed to analyze check-in history",
			zap.String("stream_id", msg.ID),
			zap.String("request_id", requestID),
			zap.Int("checkins_count", len(history)),
			zap.Error(err),
		)
		return fmt.Errorf("failed to analyze check-in history: %w", err)
	}

	// 3. 更新 Redis 缓存
	if err := c.cache.StoreResult(ctx, event.UserID, result); err != nil {
		c.metrics.IncrementFailed("cache_failed")
		c.logger.Error("Failed to update analysis cache",
			zap.String("stream_id", msg.ID),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to update analysis cache: %w", err)
	}

	processingDuration := time.Since(startTime)
	c.metrics.IncrementSucceeded(processingDuration)
	c.metrics.IncrementBand(result.RiskBand)

	c.logger.Info("Analyzed and cached check-in risk",
		zap.String("request_id", requestID),
		zap.String("risk_band", string(result.RiskBand)),
		zap.Int("signals_count", len(result.Signals)),
		zap.Duration("processing_time", processingDuration),
	)

	return nil
}

// reportMetrics 定期报告指标（每60秒）
func (c *StreamConsumer) reportMetrics(ctx context.Context) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := c.metrics.GetSnapshot()
			uptime := time.Since(snapshot.StartTime)

			var avgProcessingTime time.Duration
			if snapshot.MessagesSucceeded > 0 {
				avgProcessingTime = snapshot.TotalProcessingTime / time.Duration(snapshot.MessagesSucceeded)
			}

			successRate := float64(0)
			if snapshot.MessagesProcessed > 0 {
				successRate = float64(snapshot.MessagesSucceeded) / float64(snapshot.MessagesProcessed) * 100
			}

			c.logger.Info("Metrics report",
				zap.Int64("messages_processed", snapshot.MessagesProcessed),
				zap.Int64("messages_succeeded", snapshot.MessagesSucceeded),
				zap.Int64("messages_failed", snapshot.MessagesFailed),
				zap.Int64("messages_skipped", snapshot.MessagesSkipped),
				zap.Float64("success_rate", successRate),
				zap.Int64("errors_parse", snapshot.ErrorsParse),
				zap.Int64("errors_history_load", snapshot.ErrorsHistoryLoad),
				zap.Int64("errors_analysis_failed", snapshot.ErrorsAnalysisFailed),
				zap.Int64("errors_cache_failed", snapshot.ErrorsCacheFailed),
				zap.Int64("band_low", snapshot.BandLow),
				zap.Int64("band_moderate", snapshot.BandModerate),
				zap.Int64("band_elevated", snapshot.BandElevated),
				zap.Int64("band_high", snapshot.BandHigh),
				zap.Int64("band_insufficient", snapshot.BandInsufficient),
				zap.Duration("avg_processing_time", avgProcessingTime),
				zap.Duration("uptime", uptime),
			)
		}
	}
}
