package analyst

import (
	"recoveryos/internal/models"
)

// 原因码（供临床审阅的透明解释）
const (
	ReasonInsufficientData    = "INSUFFICIENT_DATA"
	ReasonSleepDisruption     = "SLEEP_DISRUPTION"
	ReasonSocialWithdrawal    = "SOCIAL_WITHDRAWAL"
	ReasonAdherenceDecline    = "ADHERENCE_DECLINE"
	ReasonCravingSpike        = "CRAVING_SPIKE"
	ReasonMoodDeterioration   = "MOOD_DETERIORATION"
	ReasonSleepIsolationCombo = "SLEEP_ISOLATION_PATTERN"
	ReasonMoodAdherenceCombo  = "MOOD_ADHERENCE_PATTERN"
	ReasonMultipleRiskFactors = "MULTIPLE_RISK_FACTORS"
)

// GenerateReasonCodes 根据信号生成原因码
// 单项原因码按固定顺序排列，组合原因码在单项之后
// MULTIPLE_RISK_FACTORS 要求至少 3 种不同类型的信号
func GenerateReasonCodes(signals []models.Signal) []string {
	codes := []string{}

	present := make(map[models.SignalType]bool)
	for _, s := range signals {
		present[s.Type] = true
	}

	if present[models.SignalSleepLow] {
		codes = append(codes, ReasonSleepDisruption)
	}
	if present[models.SignalIsolationUp] {
		codes = append(codes, ReasonSocialWithdrawal)
	}
	if present[models.SignalAdherenceLow] {
		codes = append(codes, ReasonAdherenceDecline)
	}
	if present[models.SignalCravingsHigh] {
		codes = append(codes, ReasonCravingSpike)
	}
	if present[models.SignalMoodDecline] {
		codes = append(codes, ReasonMoodDeterioration)
	}

	if present[models.SignalSleepLow] && present[models.SignalIsolationUp] {
		codes = append(codes, ReasonSleepIsolationCombo)
	}
	if present[models.SignalMoodDecline] && present[models.SignalAdherenceLow] {
		codes = append(codes, ReasonMoodAdherenceCombo)
	}

	if len(present) >= 3 {
		codes = append(codes, ReasonMultipleRiskFactors)
	}

	return codes
}
