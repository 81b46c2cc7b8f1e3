package auditor

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"recoveryos/internal/models"

	"go.uber.org/zap"
)

// 审计规则名（rules_fired 中的标识）
const (
	RuleCrisisLanguage = "CRISIS_LANGUAGE_DETECTED"
	RuleStigmaLanguage = "STIGMA_LANGUAGE_DETECTED"
	RulePIIRedacted    = "PII_PHI_REDACTED"
	RuleConsentDenied  = "CONSENT_DENIED"
)

// SafetyAuditor 安全审计器
//
// 独立于其他 Agent 的最终闸门，对任何外发内容做分层确定性检查：
// 1. 危机/自伤语言（命中即升级；除"发给成员本人的安全资源"外一律拦截）
// 2. 污名化语言（临床语境之外拦截）
// 3. PII/PHI 脱敏（替换不拦截）
// 4. 授权检查（默认拒绝）
// 审计本身不做任何 I/O，判定完全可复现
type SafetyAuditor struct {
	policy *Policy
	logger *zap.Logger
}

// NewSafetyAuditor 创建安全审计器
func NewSafetyAuditor(policy *Policy, logger *zap.Logger) *SafetyAuditor {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &SafetyAuditor{
		policy: policy,
		logger: logger,
	}
}

// PolicyVersion 返回当前策略版本
func (s *SafetyAuditor) PolicyVersion() string {
	return s.policy.Version
}

// Audit 对外发内容执行分层安全审计
// content 是准备发送的原文，scope 为 nil 表示没有任何授权记录
func (s *SafetyAuditor) Audit(content string, contentType models.ContentType, userID string, scope *models.ConsentScope) *models.SafetyAuditResult {
	rulesTriggered := []string{}
	redactions := []models.Redaction{}
	escalation := false

	// 1. 危机语言检查
	if matchAny(s.policy.Crisis, content) {
		rulesTriggered = append(rulesTriggered, RuleCrisisLanguage)
		escalation = true

		// 只有发给成员本人的安全资源内容（危机热线等）允许通过
		if contentType != models.ContentMemberMessage || !matchAny(s.policy.SafetyResources, content) {
			s.logger.Warn("Crisis language blocked",
				zap.String("content_type", string(contentType)),
				zap.String("user_id_hash", hashUserID(userID)),
			)
			return &models.SafetyAuditResult{
				Decision:             models.DecisionBlocked,
				PolicyRulesTriggered: rulesTriggered,
				Redactions:           redactions,
				EscalationRequired:   true,
				SanitizedContent:     content,
				AuditMetadata: models.AuditMetadata{
					Reason:     "Crisis language detected",
					Timestamp:  isoNow(),
					UserIDHash: hashUserID(userID),
				},
			}
		}
	}

	// 2. 污名化语言检查（临床语境白名单内不拦截）
	if matchAny(s.policy.Stigma, content) {
		if !matchAny(s.policy.ClinicalAllowlist, content) {
			rulesTriggered = append(rulesTriggered, RuleStigmaLanguage)
			return &models.SafetyAuditResult{
				Decision:             models.DecisionBlocked,
				PolicyRulesTriggered: rulesTriggered,
				Redactions:           redactions,
				EscalationRequired:   false,
				SanitizedContent:     content,
				AuditMetadata: models.AuditMetadata{
					Reason:     "Stigmatizing language detected outside clinical context",
					Timestamp:  isoNow(),
					UserIDHash: hashUserID(userID),
				},
			}
		}
	}

	// 3. PII/PHI 脱敏（不拦截）
	sanitized, redactions := s.redactPII(content)
	if len(redactions) > 0 {
		rulesTriggered = append(rulesTriggered, RulePIIRedacted)
	}

	// 4. 授权检查（默认拒绝）
	consentVerdict := CheckConsent(contentType, scope)
	if !strings.HasPrefix(consentVerdict, "ALLOWED") {
		rulesTriggered = append(rulesTriggered, RuleConsentDenied)
		return &models.SafetyAuditResult{
			Decision:             models.DecisionBlocked,
			PolicyRulesTriggered: rulesTriggered,
			Redactions:           redactions,
			ConsentVerdict:       consentVerdict,
			EscalationRequired:   false,
			SanitizedContent:     sanitized,
			AuditMetadata: models.AuditMetadata{
				Reason:     consentVerdict,
				Timestamp:  isoNow(),
				UserIDHash: hashUserID(userID),
			},
		}
	}

	// 通过：危机升级标记保留（安全资源内容放行时仍需人工跟进）
	return &models.SafetyAuditResult{
		Decision:             models.DecisionApproved,
		PolicyRulesTriggered: rulesTriggered,
		Redactions:           redactions,
		ConsentVerdict:       consentVerdict,
		EscalationRequired:   escalation,
		SanitizedContent:     sanitized,
		AuditMetadata: models.AuditMetadata{
			Timestamp:  isoNow(),
			UserIDHash: hashUserID(userID),
		},
	}
}

// redactPII 按策略逐条替换 PII/PHI，返回脱敏后文本与命中的规则
func (s *SafetyAuditor) redactPII(content string) (string, []models.Redaction) {
	sanitized := content
	redactions := []models.Redaction{}

	for _, rule := range s.policy.PIIRules {
		if rule.Pattern.MatchString(sanitized) {
			sanitized = rule.Pattern.ReplaceAllString(sanitized, rule.Replacement)
			redactions = append(redactions, models.Redaction{
				Pattern:     rule.Expr,
				Replacement: rule.Replacement,
			})
		}
	}

	return sanitized, redactions
}

// hashUserID 用户标识哈希（审计记录中不出现明文用户 ID）
func hashUserID(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])
}

func isoNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}
