package analyst

import (
	"math"

	"recoveryos/internal/models"
)

// signalBaseScores 各信号类型的基础分值
var signalBaseScores = map[models.SignalType]float64{
	models.SignalSleepLow:     20,
	models.SignalIsolationUp:  25,
	models.SignalAdherenceLow: 30,
	models.SignalCravingsHigh: 15,
	models.SignalMoodDecline:  15,
}

// unknownSignalScore 未登记信号类型的保底分值
const unknownSignalScore = 10

// windowWeights 窗口权重（近期窗口权重更高）
var windowWeights = map[models.WindowName]float64{
	models.Window3Day:  1.5,
	models.Window14Day: 1.0,
	models.Window30Day: 0.7,
}

// CalculateRiskScore 计算综合风险分（0-100）及整体置信度
// 分值 = Σ(基础分 × 信号置信度 × 窗口权重) / Σ(信号置信度 × 窗口权重)，上限截断到 100
// 无信号时返回 (0, 1.0)：没有任何异常本身就是高置信度的结论
func CalculateRiskScore(signals []models.Signal) (int, float64) {
	if len(signals) == 0 {
		return 0, 1.0
	}

	var weightedSum, totalWeight float64
	for _, s := range signals {
		baseScore, ok := signalBaseScores[s.Type]
		if !ok {
			baseScore = unknownSignalScore
		}

		windowWeight, ok := windowWeights[s.Window]
		if !ok {
			windowWeight = 1.0
		}

		weightedSum += baseScore * s.Confidence * windowWeight
		totalWeight += s.Confidence * windowWeight
	}

	var score int
	if totalWeight > 0 {
		score = int(math.Min(100, weightedSum/totalWeight))
	}

	var confidenceSum float64
	for _, s := range signals {
		confidenceSum += s.Confidence
	}
	confidence := confidenceSum / float64(len(signals))

	return score, confidence
}

// DetermineRiskBand 将风险分映射到风险等级
func DetermineRiskBand(score int) models.RiskBand {
	switch {
	case score < 30:
		return models.RiskBandLow
	case score < 55:
		return models.RiskBandElevated
	case score < 75:
		return models.RiskBandModerate
	default:
		return models.RiskBandHigh
	}
}
