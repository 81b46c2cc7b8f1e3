package notifier

import (
	"context"
	"fmt"
	"time"

	"recoveryos/internal/models"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EscalationEvent 危机升级通知载荷
// 只携带哈希与原因码，绝不携带成员原文内容
type EscalationEvent struct {
	EventID     string   `json:"event_id"`
	UserIDHash  string   `json:"user_id_hash"`
	Source      string   `json:"source"` // "patterns_analyst" 或 "safety_auditor"
	RiskBand    string   `json:"risk_band,omitempty"`
	Score       *int     `json:"score,omitempty"`
	ReasonCodes []string `json:"reason_codes"`
	TriggeredAt string   `json:"triggered_at"`
}

// EscalationNotifier 危机升级 Webhook 通知器
// 未配置 Webhook 地址或显式禁用时退化为 no-op
type EscalationNotifier struct {
	httpClient *resty.Client
	webhookURL string
	enabled    bool
	logger     *zap.Logger
}

// NewEscalationNotifier 创建升级通知器
// enabled=false 或 webhookURL 为空时所有通知只记录 debug 日志
func NewEscalationNotifier(webhookURL string, enabled bool, timeout time.Duration, retryCount int, logger *zap.Logger) *EscalationNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		SetHeader("Content-Type", "application/json")

	return &EscalationNotifier{
		httpClient: client,
		webhookURL: webhookURL,
		enabled:    enabled && webhookURL != "",
		logger:     logger,
	}
}

// Enabled 通知器是否生效
func (n *EscalationNotifier) Enabled() bool {
	return n.enabled
}

// Notify 发送升级通知
// 通知失败不影响主流程，由调用方决定是否关心返回的错误
func (n *EscalationNotifier) Notify(ctx context.Context, event *EscalationEvent) error {
	if !n.enabled {
		n.logger.Debug("Escalation notifier disabled, skipping",
			zap.String("source", event.Source),
			zap.String("user_id_hash", event.UserIDHash),
		)
		return nil
	}

	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.TriggeredAt == "" {
		event.TriggeredAt = time.Now().UTC().Format(time.RFC3339)
	}
	if event.ReasonCodes == nil {
		event.ReasonCodes = []string{}
	}

	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetBody(event).
		Post(n.webhookURL)

	if err != nil {
		n.logger.Error("Escalation webhook call failed",
			zap.String("source", event.Source),
			zap.String("user_id_hash", event.UserIDHash),
			zap.Error(err),
		)
		return fmt.Errorf("failed to call escalation webhook: %w", err)
	}

	if resp.StatusCode() >= 300 {
		n.logger.Error("Escalation webhook returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("user_id_hash", event.UserIDHash),
		)
		return fmt.Errorf("escalation webhook returned status %d", resp.StatusCode())
	}

	n.logger.Info("Escalation notified",
		zap.String("source", event.Source),
		zap.String("user_id_hash", event.UserIDHash),
		zap.String("risk_band", event.RiskBand),
	)

	return nil
}

// NotifyHighRisk 高风险分析结果升级
func (n *EscalationNotifier) NotifyHighRisk(ctx context.Context, userIDHash string, analysis *models.PatternsAnalysisResult) error {
	return n.Notify(ctx, &EscalationEvent{
		UserIDHash:  userIDHash,
		Source:      "patterns_analyst",
		RiskBand:    string(analysis.RiskBand),
		Score:       analysis.Score,
		ReasonCodes: analysis.ReasonCodes,
	})
}

// NotifyCrisisContent 安全审计发现危机内容时升级
func (n *EscalationNotifier) NotifyCrisisContent(ctx context.Context, userIDHash string, result *models.SafetyAuditResult) error {
	return n.Notify(ctx, &EscalationEvent{
		UserIDHash:  userIDHash,
		Source:      "safety_auditor",
		ReasonCodes: result.PolicyRulesTriggered,
	})
}
