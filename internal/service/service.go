package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"recoveryos/internal/analyst"
	"recoveryos/internal/auditor"
	"recoveryos/internal/config"
	"recoveryos/internal/consumer"
	"recoveryos/internal/database"
	"recoveryos/internal/export"
	"recoveryos/internal/notifier"
	"recoveryos/internal/orchestrator"
	"recoveryos/internal/redisx"
	"recoveryos/internal/repository"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RiskAgentsService 风险分析服务
type RiskAgentsService struct {
	config      *config.Config
	logger      *zap.Logger
	db          *sql.DB
	redisClient *redis.Client

	checkins *repository.CheckinsRepository
	consents *repository.ConsentScopesRepository

	orch           *orchestrator.Orchestrator
	analysisCache  *consumer.AnalysisCache
	streamConsumer *consumer.StreamConsumer
	exporter       *export.BriefingExporter
}

// NewRiskAgentsService 创建风险分析服务
func NewRiskAgentsService(cfg *config.Config, logger *zap.Logger) (*RiskAgentsService, error) {
	// 初始化数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 初始化 Redis（事件消费、基线与分析结果缓存）
	redisClient := redisx.NewRedisClient(&cfg.Redis)
	if err := redisx.Ping(context.Background(), redisClient); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// 创建 Repository
	checkins := repository.NewCheckinsRepository(db, logger)
	signals := repository.NewSignalsRepository(db, logger)
	auditLog := repository.NewAuditLogRepository(db, logger)
	consents := repository.NewConsentScopesRepository(db, logger)

	// 创建两个 Agent
	kv := analyst.NewRedisKVStore(redisClient)
	baselines := analyst.NewBaselineCache(kv, cfg.Agents.BaselineCacheTTL, logger)
	patternsAnalyst := analyst.NewPatternsAnalyst(baselines, logger)
	safetyAuditor := auditor.NewSafetyAuditor(nil, logger)

	// 危机升级通知
	escalator := notifier.NewEscalationNotifier(
		cfg.Notifier.WebhookURL,
		cfg.Notifier.Enabled,
		time.Duration(cfg.Notifier.Timeout)*time.Second,
		cfg.Notifier.RetryCount,
		logger,
	)

	// 编排器：分析、审计、记录、升级
	orch := orchestrator.NewOrchestrator(patternsAnalyst, safetyAuditor, auditLog, signals, escalator, logger)

	// 分析结果缓存
	analysisCache := consumer.NewAnalysisCache(kv, cfg.Agents.AnalysisCacheTTL, logger)

	// 创建事件消费者（如果使用事件驱动模式）
	var streamConsumer *consumer.StreamConsumer
	if cfg.Agents.TriggerMode == "events" {
		streamConsumer = consumer.NewStreamConsumer(cfg, redisClient, checkins, orch, analysisCache, logger)
	}

	// 临床简报导出
	exporter := export.NewBriefingExporter(orch, consents, logger)

	return &RiskAgentsService{
		config:         cfg,
		logger:         logger,
		db:             db,
		redisClient:    redisClient,
		checkins:       checkins,
		consents:       consents,
		orch:           orch,
		analysisCache:  analysisCache,
		streamConsumer: streamConsumer,
		exporter:       exporter,
	}, nil
}

// Orchestrator 返回编排器（简报导出等上层调用入口）
func (s *RiskAgentsService) Orchestrator() *orchestrator.Orchestrator {
	return s.orch
}

// Exporter 返回临床简报导出器
func (s *RiskAgentsService) Exporter() *export.BriefingExporter {
	return s.exporter
}

// Start 启动服务
func (s *RiskAgentsService) Start(ctx context.Context) error {
	s.logger.Info("Starting risk agents service",
		zap.String("trigger_mode", s.config.Agents.TriggerMode),
		zap.String("event_stream", s.config.Agents.EventStream),
	)

	// 根据触发模式启动不同的处理逻辑
	if s.config.Agents.TriggerMode == "polling" {
		return s.startPollingMode(ctx)
	} else if s.config.Agents.TriggerMode == "events" {
		return s.startEventDrivenMode(ctx)
	}
	return fmt.Errorf("unsupported trigger mode: %s", s.config.Agents.TriggerMode)
}

// startPollingMode 启动轮询模式：周期性分析近期活跃用户
func (s *RiskAgentsService) startPollingMode(ctx context.Context) error {
	interval := time.Duration(s.config.Agents.Polling.Interval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Starting polling mode",
		zap.Duration("interval", interval),
	)

	// 首次执行一次全量分析
	if err := s.analyzeActiveUsers(ctx); err != nil {
		s.logger.Error("Failed to analyze active users on startup", zap.Error(err))
	}

	// 定时轮询
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.analyzeActiveUsers(ctx); err != nil {
				s.logger.Error("Failed to analyze active users", zap.Error(err))
			}
		}
	}
}

// startEventDrivenMode 启动事件驱动模式
func (s *RiskAgentsService) startEventDrivenMode(ctx context.Context) error {
	s.logger.Info("Starting event-driven mode")

	// 启动每日刷新任务：分析窗口随时间滑动，没有新打卡时缓存结果也会过时
	go s.startScheduledRefresh(ctx)

	// 启动事件消费者（阻塞）
	if s.streamConsumer != nil {
		return s.streamConsumer.Start(ctx)
	}

	return fmt.Errorf("stream consumer not initialized")
}

// startScheduledRefresh 定时任务（每天上午9点全量刷新）
func (s *RiskAgentsService) startScheduledRefresh(ctx context.Context) {
	s.logger.Info("Starting scheduled refresh task (daily at 9:00 AM)")

	for {
		// 计算到下一个上午9点的时间
		now := time.Now()
		next9AM := time.Date(now.Year(), now.Month(), now.Day(), 9, 0, 0, 0, now.Location())
		if next9AM.Before(now) {
			next9AM = next9AM.Add(24 * time.Hour)
		}

		duration := next9AM.Sub(now)
		timer := time.NewTimer(duration)

		s.logger.Info("Scheduled refresh will run at",
			zap.Time("next_run", next9AM),
			zap.Duration("wait_duration", duration),
		)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.logger.Info("Running scheduled full refresh")
			if err := s.analyzeActiveUsers(ctx); err != nil {
				s.logger.Error("Failed to refresh analyses in scheduled run", zap.Error(err))
			} else {
				s.logger.Info("Scheduled full refresh completed successfully")
			}
		}
	}
}

// analyzeActiveUsers 分析近 24 小时内有打卡的所有用户
func (s *RiskAgentsService) analyzeActiveUsers(ctx context.Context) error {
	since := time.Now().UTC().Add(-24 * time.Hour).Format(time.RFC3339)

	userIDs, err := s.checkins.ListActiveUsers(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to list active users: %w", err)
	}

	s.logger.Info("Found active users to analyze",
		zap.Int("user_count", len(userIDs)),
	)

	successCount := 0
	errorCount := 0

	for _, userID := range userIDs {
		select {
		case <-ctx.Done():
			return nil
		default:
			if err := s.analyzeUser(ctx, userID); err != nil {
				s.logger.Error("Failed to analyze user", zap.Error(err))
				errorCount++
			} else {
				successCount++
			}
		}
	}

	s.logger.Info("Completed analyzing active users",
		zap.Int("success_count", successCount),
		zap.Int("error_count", errorCount),
	)

	return nil
}

// analyzeUser 分析单个用户并更新缓存
func (s *RiskAgentsService) analyzeUser(ctx context.Context, userID string) error {
	history, err := s.checkins.GetCheckInHistory(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load check-in history: %w", err)
	}
	if len(history) == 0 {
		return nil
	}

	result, err := s.orch.AnalyzeCheckIn(ctx, userID, history)
	if err != nil {
		return fmt.Errorf("failed to analyze check-in history: %w", err)
	}

	if err := s.analysisCache.StoreResult(ctx, userID, result); err != nil {
		return fmt.Errorf("failed to cache analysis result: %w", err)
	}

	return nil
}

// Stop 停止服务
func (s *RiskAgentsService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping risk agents service")

	// 关闭 Redis
	if s.redisClient != nil {
		if err := redisx.Close(s.redisClient); err != nil {
			s.logger.Error("Error closing redis connection", zap.Error(err))
		}
	}

	// 关闭数据库
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Error closing database connection", zap.Error(err))
		}
	}

	s.logger.Info("Risk agents service stopped")
	return nil
}
