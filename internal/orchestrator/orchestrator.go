package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"recoveryos/internal/analyst"
	"recoveryos/internal/auditor"
	"recoveryos/internal/models"
	"recoveryos/internal/notifier"
	"recoveryos/internal/repository"

	"go.uber.org/zap"
)

// Agent 名称（audit_log.agent 字段取值）
const (
	AgentPatternsAnalyst = "patterns_analyst"
	AgentSafetyAuditor   = "safety_auditor"
)

// Orchestrator 多 Agent 编排器
//
// 职责：
// 1. 模式分析（Patterns Analyst）产出风险评估
// 2. 外发内容审计（Safety Auditor）做最终把关
// 3. 每个决策写入 audit_log，检出的信号写入 signals
// 存储或通知失败只记录日志，不吞掉已经算出的结果
type Orchestrator struct {
	analyst   *analyst.PatternsAnalyst
	auditor   *auditor.SafetyAuditor
	auditLog  *repository.AuditLogRepository
	signals   *repository.SignalsRepository
	escalator *notifier.EscalationNotifier
	logger    *zap.Logger
}

// NewOrchestrator 创建编排器
// escalator 可以为 nil（离线回放等不需要升级通知的场景）
func NewOrchestrator(
	patternsAnalyst *analyst.PatternsAnalyst,
	safetyAuditor *auditor.SafetyAuditor,
	auditLog *repository.AuditLogRepository,
	signals *repository.SignalsRepository,
	escalator *notifier.EscalationNotifier,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		analyst:   patternsAnalyst,
		auditor:   safetyAuditor,
		auditLog:  auditLog,
		signals:   signals,
		escalator: escalator,
		logger:    logger,
	}
}

// AnalyzeCheckIn 对打卡历史运行模式分析
// history 必须按时间升序；时间戳损坏时返回 analyst.ErrBadTimestamp，此时不写任何记录
func (o *Orchestrator) AnalyzeCheckIn(ctx context.Context, userID string, history []models.CheckIn) (*models.PatternsAnalysisResult, error) {
	analysis, err := o.analyst.Analyze(ctx, userID, history)
	if err != nil {
		return nil, err
	}

	// 1. 记录分析决策
	o.logAudit(ctx, auditRecord{
		Agent:    AgentPatternsAnalyst,
		Decision: strings.ToUpper(string(analysis.RiskBand)),
		UserID:   userID,
		InputRefs: map[string]interface{}{
			"checkins_count": len(history),
		},
		RulesFired: analysis.ReasonCodes,
		Outputs: map[string]interface{}{
			"risk_band":     analysis.RiskBand,
			"score":         analysis.Score,
			"confidence":    analysis.Confidence,
			"signals_count": len(analysis.Signals),
		},
	})

	// 2. 落盘检出的信号
	if len(analysis.Signals) > 0 {
		o.storeSignals(ctx, userID, analysis.Signals)
	}

	// 3. 高风险升级
	if analysis.RiskBand == models.RiskBandHigh && o.escalator != nil {
		if err := o.escalator.NotifyHighRisk(ctx, hashUserID(userID), analysis); err != nil {
			o.logger.Error("Failed to notify high risk escalation",
				zap.String("user_id_hash", hashUserID(userID)),
				zap.Error(err),
			)
		}
	}

	return analysis, nil
}

// AuditMessage 对外发内容运行安全审计
// 审计本身不会失败；审计决策同步写入 audit_log
func (o *Orchestrator) AuditMessage(ctx context.Context, content string, contentType models.ContentType, userID string, scope *models.ConsentScope) *models.SafetyAuditResult {
	result := o.auditor.Audit(content, contentType, userID, scope)

	metadataJSON := marshalOrEmpty(result.AuditMetadata)
	o.logAudit(ctx, auditRecord{
		Agent:    AgentSafetyAuditor,
		Decision: string(result.Decision),
		UserID:   userID,
		InputRefs: map[string]interface{}{
			"content_type":   contentType,
			"content_length": len(content),
		},
		RulesFired: result.PolicyRulesTriggered,
		Outputs: map[string]interface{}{
			"decision":            result.Decision,
			"redactions_count":    len(result.Redactions),
			"consent_verdict":     nullableString(result.ConsentVerdict),
			"escalation_required": result.EscalationRequired,
		},
		Metadata: &metadataJSON,
	})

	if result.EscalationRequired && o.escalator != nil {
		if err := o.escalator.NotifyCrisisContent(ctx, hashUserID(userID), result); err != nil {
			o.logger.Error("Failed to notify crisis escalation",
				zap.String("user_id_hash", hashUserID(userID)),
				zap.Error(err),
			)
		}
	}

	return result
}

// auditRecord 待写入 audit_log 的决策
type auditRecord struct {
	Agent      string
	Decision   string
	UserID     string
	InputRefs  map[string]interface{}
	RulesFired []string
	Outputs    map[string]interface{}
	Metadata   *string // 已序列化的 JSON，可为 nil
}

// logAudit 写入审计记录，失败只记录日志
func (o *Orchestrator) logAudit(ctx context.Context, rec auditRecord) {
	if o.auditLog == nil {
		return
	}

	entry := &models.AuditLogEntry{
		Agent:      rec.Agent,
		Decision:   rec.Decision,
		UserIDHash: hashUserID(rec.UserID),
		InputRefs:  marshalOrEmpty(rec.InputRefs),
		RulesFired: marshalOrEmpty(rec.RulesFired),
		Outputs:    marshalOrEmpty(rec.Outputs),
		Metadata:   rec.Metadata,
		CreatedAt:  isoNow(),
	}

	if _, err := o.auditLog.Append(ctx, entry); err != nil {
		o.logger.Error("Failed to append audit log",
			zap.String("agent", rec.Agent),
			zap.String("decision", rec.Decision),
			zap.Error(err),
		)
	}
}

// storeSignals 将信号写入 signals 表，失败只记录日志
func (o *Orchestrator) storeSignals(ctx context.Context, userID string, signals []models.Signal) {
	if o.signals == nil {
		return
	}

	for _, s := range signals {
		baseline := s.Baseline
		rec := &models.SignalRecord{
			UserID:     userID,
			SignalType: string(s.Type),
			Window:     string(s.Window),
			Value:      s.Value,
			Baseline:   &baseline,
			Deviation:  s.Deviation,
			Confidence: s.Confidence,
			// reason_codes 暂存空数组，信号与原因码的关联尚未回填
			ReasonCodes: "[]",
			CreatedAt:   isoNow(),
		}

		if _, err := o.signals.CreateSignal(ctx, rec); err != nil {
			o.logger.Error("Failed to store signal",
				zap.String("user_id_hash", hashUserID(userID)),
				zap.String("signal_type", string(s.Type)),
				zap.String("window", string(s.Window)),
				zap.Error(err),
			)
		}
	}
}

// hashUserID 用户标识哈希（审计与日志中不出现明文用户 ID）
func hashUserID(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])
}

func isoNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func marshalOrEmpty(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// nullableString 空串序列化为 null（审计短路时 consent_verdict 不存在）
func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
