package auditor

import (
	"regexp"
)

// RedactionRule 脱敏规则：匹配模式与替换标记
// Expr 保存原始表达式文本，命中后原样写入审计记录
type RedactionRule struct {
	Expr        string
	Replacement string
	Pattern     *regexp.Regexp
}

// Policy 安全审计策略（模式表即数据）
// 策略只描述"匹配什么"，判定流程在 SafetyAuditor 中固定不变
// 修订模式集合时只需要替换 Policy，不改审计逻辑
type Policy struct {
	Version string

	// 危机/自伤语言（命中即升级，默认硬拦截）
	Crisis []*regexp.Regexp

	// 安全资源指征（危机热线类内容发给成员本人时放行）
	SafetyResources []*regexp.Regexp

	// 污名化语言（临床语境之外拦截）
	Stigma []*regexp.Regexp

	// 临床语境白名单（出现任一词条即视为临床语境）
	ClinicalAllowlist []*regexp.Regexp

	// PII/PHI 脱敏规则（不拦截，只替换并记录）
	PIIRules []RedactionRule
}

// DefaultPolicy 内置策略 v1
// 全部模式大小写不敏感
func DefaultPolicy() *Policy {
	return &Policy{
		Version: "v1",
		Crisis: compileAll(
			`\b(kill|harm|hurt)\s+(myself|yourself|themselves)\b`,
			`\bsuicid(e|al)\b`,
			`\bend\s+(my|your|their)\s+life\b`,
			`\bwant\s+to\s+die\b`,
			`\bbetter\s+off\s+dead\b`,
			`\bno\s+reason\s+to\s+live\b`,
		),
		SafetyResources: compileAll(
			`crisis\s+(line|hotline)`,
			`988`,
			`1-800-273-8255`,
			`emergency\s+services`,
			`if\s+you\s+are\s+in\s+danger`,
		),
		Stigma: compileAll(
			`\baddict\b`,      // 应使用 "person in recovery"
			`\bjunkie\b`,
			`\bcrackhead\b`,
			`\bdrug\s+abuse\b`, // 应使用 "substance use"
			`\bclean\b`,        // 应使用 "in recovery" 或 "abstinent"
			`\bdirty\b`,        // 避免道德化表述
			`\brelapse\b.*\bfail(ed|ure)\b`, // 避免羞辱性表述
		),
		ClinicalAllowlist: compileAll(
			`craving\s+assessment`,
			`craving\s+scale`,
			`substance\s+use\s+disorder`,
			`recovery\s+plan`,
		),
		PIIRules: []RedactionRule{
			newRedactionRule(`\b\d{3}-\d{2}-\d{4}\b`, "[SSN_REDACTED]"),
			newRedactionRule(`\b\d{3}-\d{3}-\d{4}\b`, "[PHONE_REDACTED]"),
			newRedactionRule(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`, "[EMAIL_REDACTED]"),
			newRedactionRule(`\b\d{1,5}\s+[\w\s]+(?:street|st|avenue|ave|road|rd|boulevard|blvd)\b`, "[ADDRESS_REDACTED]"),
		},
	}
}

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(`(?i)`+p))
	}
	return compiled
}

func newRedactionRule(expr, replacement string) RedactionRule {
	return RedactionRule{
		Expr:        expr,
		Replacement: replacement,
		Pattern:     regexp.MustCompile(`(?i)` + expr),
	}
}

func matchAny(patterns []*regexp.Regexp, content string) bool {
	for _, p := range patterns {
		if p.MatchString(content) {
			return true
		}
	}
	return false
}
