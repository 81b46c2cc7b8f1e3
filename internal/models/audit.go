package models

// Decision 安全审计结论
type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionBlocked  Decision = "BLOCKED"
)

// ContentType 外发内容类型
type ContentType string

const (
	ContentMemberMessage     ContentType = "member_message"
	ContentClinicianBriefing ContentType = "clinician_briefing"
	ContentFamilyUpdate      ContentType = "family_update"
)

// Redaction 一次脱敏替换（命中的模式与替换标记）
type Redaction struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
}

// AuditMetadata 审计元数据
type AuditMetadata struct {
	Reason     string `json:"reason,omitempty"`
	Timestamp  string `json:"timestamp"`
	UserIDHash string `json:"user_id_hash"`
}

// SafetyAuditResult 安全审计结果
// ConsentVerdict 为空表示审计在授权检查之前已经短路
type SafetyAuditResult struct {
	Decision             Decision      `json:"decision"`
	PolicyRulesTriggered []string      `json:"policy_rules_triggered"`
	Redactions           []Redaction   `json:"redactions"`
	ConsentVerdict       string        `json:"consent_verdict,omitempty"`
	EscalationRequired   bool          `json:"escalation_required"`
	SanitizedContent     string        `json:"sanitized_content"`
	AuditMetadata        AuditMetadata `json:"audit_metadata"`
}

// ConsentScope 授权范围记录（consent_scopes 表）
// Permissions 保存原始 JSON 文本，由授权检查解析
type ConsentScope struct {
	ID          int64  `json:"id,omitempty"`
	UserID      string `json:"user_id"`
	ScopeType   string `json:"scope_type"` // clinician, family 等
	Permissions string `json:"permissions"`
	Status      string `json:"status"` // active, revoked
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// AuditLogEntry 审计日志记录（audit_log 表，只追加不修改）
// InputRefs/RulesFired/Outputs/Metadata 均为 JSON 文本
type AuditLogEntry struct {
	ID         int64   `json:"id,omitempty"`
	Agent      string  `json:"agent"`
	Decision   string  `json:"decision"`
	UserIDHash string  `json:"user_id_hash"`
	InputRefs  string  `json:"input_refs"`
	RulesFired string  `json:"rules_fired"`
	Outputs    string  `json:"outputs"`
	Metadata   *string `json:"metadata,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// SignalRecord 风险信号记录（signals 表）
type SignalRecord struct {
	ID          int64    `json:"id,omitempty"`
	UserID      string   `json:"user_id"`
	SignalType  string   `json:"signal_type"`
	Window      string   `json:"window"`
	Value       float64  `json:"value"`
	Baseline    *float64 `json:"baseline"`
	Deviation   *float64 `json:"deviation"`
	Confidence  float64  `json:"confidence"`
	ReasonCodes string   `json:"reason_codes"` // JSON 数组文本
	CreatedAt   string   `json:"created_at"`
}
