package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"recoveryos/internal/config"
)

func TestStart_UnsupportedTriggerMode(t *testing.T) {
	cfg := &config.Config{}
	cfg.Agents.TriggerMode = "cron"

	svc := &RiskAgentsService{
		config: cfg,
		logger: zap.NewNop(),
	}

	err := svc.Start(context.Background())
	if err == nil {
		t.Fatal("Expected error for unsupported trigger mode")
	}
	if got := err.Error(); got != "unsupported trigger mode: cron" {
		t.Errorf("Unexpected error message: %s", got)
	}
}

func TestStart_EventModeRequiresConsumer(t *testing.T) {
	cfg := &config.Config{}
	cfg.Agents.TriggerMode = "events"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 事件模式但消费者未初始化
	svc := &RiskAgentsService{
		config: cfg,
		logger: zap.NewNop(),
	}

	err := svc.Start(ctx)
	if err == nil {
		t.Fatal("Expected error when stream consumer is not initialized")
	}
	if got := err.Error(); got != "stream consumer not initialized" {
		t.Errorf("Unexpected error message: %s", got)
	}
}

func TestNewRiskAgentsService(t *testing.T) {
	// NewRiskAgentsService 直接建立数据库与 Redis 连接，单元测试无法覆盖
	// 完整链路由编排器、消费者、导出器各自的测试覆盖
	t.Skip("需要真实的数据库与 Redis 连接")
}
