package auditor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"recoveryos/internal/auditor"
	"recoveryos/internal/models"
)

func activeScope(scopeType, permissions string) *models.ConsentScope {
	return &models.ConsentScope{
		UserID:      "user-1",
		ScopeType:   scopeType,
		Permissions: permissions,
		Status:      "active",
	}
}

func TestCheckConsent_NoScopeDefaultDeny(t *testing.T) {
	verdict := auditor.CheckConsent(models.ContentClinicianBriefing, nil)

	assert.Equal(t, "DENIED: No consent scope provided (default deny)", verdict)
}

func TestCheckConsent_RevokedStatus(t *testing.T) {
	scope := activeScope("clinician", `["share_with_clinician"]`)
	scope.Status = "revoked"

	verdict := auditor.CheckConsent(models.ContentClinicianBriefing, scope)

	assert.Equal(t, "DENIED: Consent status is revoked", verdict)
}

func TestCheckConsent_EmptyStatusReportedAsUnknown(t *testing.T) {
	scope := activeScope("clinician", `["share_with_clinician"]`)
	scope.Status = ""

	verdict := auditor.CheckConsent(models.ContentClinicianBriefing, scope)

	assert.Equal(t, "DENIED: Consent status is unknown", verdict)
}

func TestCheckConsent_MalformedPermissions(t *testing.T) {
	scope := activeScope("clinician", `{"share_with_clinician": true}`)

	verdict := auditor.CheckConsent(models.ContentClinicianBriefing, scope)

	assert.Equal(t, "DENIED: Invalid permissions format", verdict)
}

func TestCheckConsent_MissingPermission(t *testing.T) {
	scope := activeScope("clinician", `["share_with_family"]`)

	verdict := auditor.CheckConsent(models.ContentClinicianBriefing, scope)

	assert.Equal(t, "DENIED: Permission 'share_with_clinician' not granted", verdict)
}

func TestCheckConsent_EmptyPermissionsString(t *testing.T) {
	scope := activeScope("member", "")

	verdict := auditor.CheckConsent(models.ContentMemberMessage, scope)

	assert.Equal(t, "DENIED: Permission 'send_member_messages' not granted", verdict)
}

func TestCheckConsent_Granted(t *testing.T) {
	cases := []struct {
		contentType models.ContentType
		permission  string
	}{
		{models.ContentMemberMessage, "send_member_messages"},
		{models.ContentClinicianBriefing, "share_with_clinician"},
		{models.ContentFamilyUpdate, "share_with_family"},
	}

	for _, tc := range cases {
		scope := activeScope("any", `["`+tc.permission+`"]`)
		verdict := auditor.CheckConsent(tc.contentType, scope)
		assert.Equal(t, "ALLOWED: Consent scope permits this content type", verdict, "type=%s", tc.contentType)
	}
}

func TestCheckConsent_UnknownContentTypeNeverAllowed(t *testing.T) {
	// 未登记的内容类型没有对应授权项，空权限名永不匹配
	scope := activeScope("any", `["", "share_with_clinician"]`)

	verdict := auditor.CheckConsent(models.ContentType("broadcast"), scope)

	assert.Equal(t, "DENIED: Permission '' not granted", verdict)
}

func TestScopeTypeForContent(t *testing.T) {
	assert.Equal(t, "member", auditor.ScopeTypeForContent(models.ContentMemberMessage))
	assert.Equal(t, "clinician", auditor.ScopeTypeForContent(models.ContentClinicianBriefing))
	assert.Equal(t, "family", auditor.ScopeTypeForContent(models.ContentFamilyUpdate))
	assert.Equal(t, "", auditor.ScopeTypeForContent(models.ContentType("broadcast")))
}
