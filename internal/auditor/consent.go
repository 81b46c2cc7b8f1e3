package auditor

import (
	"encoding/json"
	"fmt"

	"recoveryos/internal/models"
)

// 授权检查结论（PIPA/GDPR 默认拒绝）
const (
	VerdictAllowed        = "ALLOWED: Consent scope permits this content type"
	VerdictNoScope        = "DENIED: No consent scope provided (default deny)"
	VerdictBadPermissions = "DENIED: Invalid permissions format"
	verdictStatusFmt      = "DENIED: Consent status is %s"
	verdictNotGrantedFmt  = "DENIED: Permission '%s' not granted"
	consentStatusActive   = "active"
)

// requiredPermissions 内容类型到所需授权项的映射
var requiredPermissions = map[models.ContentType]string{
	models.ContentMemberMessage:     "send_member_messages",
	models.ContentClinicianBriefing: "share_with_clinician",
	models.ContentFamilyUpdate:      "share_with_family",
}

// scopeTypes 内容类型到 consent_scopes.scope_type 的映射
var scopeTypes = map[models.ContentType]string{
	models.ContentMemberMessage:     "member",
	models.ContentClinicianBriefing: "clinician",
	models.ContentFamilyUpdate:      "family",
}

// ScopeTypeForContent 返回内容类型对应的授权范围类型
// 未知内容类型返回空串，查询不到授权记录时走默认拒绝
func ScopeTypeForContent(contentType models.ContentType) string {
	return scopeTypes[contentType]
}

// CheckConsent 授权检查，返回说明判定依据的结论字符串
// 规则：无授权范围、状态非 active、授权格式损坏、缺少所需授权项，任一命中即拒绝
// Permissions 为空串按"未授予任何权限"处理，非空但不是 JSON 字符串数组视为格式损坏
func CheckConsent(contentType models.ContentType, scope *models.ConsentScope) string {
	if scope == nil {
		return VerdictNoScope
	}

	if scope.Status != consentStatusActive {
		status := scope.Status
		if status == "" {
			status = "unknown"
		}
		return fmt.Sprintf(verdictStatusFmt, status)
	}

	permissions := []string{}
	if scope.Permissions != "" {
		if err := json.Unmarshal([]byte(scope.Permissions), &permissions); err != nil {
			return VerdictBadPermissions
		}
	}

	required := requiredPermissions[contentType]
	for _, p := range permissions {
		if p == required && required != "" {
			return VerdictAllowed
		}
	}

	return fmt.Sprintf(verdictNotGrantedFmt, required)
}
