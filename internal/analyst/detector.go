package analyst

import (
	"recoveryos/internal/models"
)

// 信号检测阈值
const (
	// SleepLowThreshold 睡眠不足阈值（小时）
	SleepLowThreshold = 5.0
	// IsolationHighThreshold 社交隔离偏高阈值（0-100）
	IsolationHighThreshold = 70.0
	// AdherenceLowThreshold 依从度偏低阈值（百分比）
	AdherenceLowThreshold = 50.0
	// CravingsHighThreshold 渴求偏高阈值（0-100）
	CravingsHighThreshold = 60.0
	// MoodDeclineThreshold 情绪下滑阈值（mood_trend 刻度）
	MoodDeclineThreshold = -5.0
)

// DetectSignals 在所有可用窗口上运行确定性检测规则
// 窗口按 3day → 14day → 30day 固定顺序评估，保证信号输出顺序可复现
// 偏移量（deviation）只在基线来自用户本人数据时计算，默认基线下为 nil
func DetectSignals(windows *models.WindowSet, baseline models.Baseline) []models.Signal {
	var signals []models.Signal

	for _, w := range windows.Ordered() {
		agg := w.Aggregate
		if !agg.Available {
			continue
		}

		if agg.SleepAvg < SleepLowThreshold {
			var deviation *float64
			if !baseline.IsDefault {
				d := agg.SleepAvg - baseline.SleepHours
				deviation = &d
			}

			confidence := 0.7
			if deviation != nil && *deviation < -1.5 {
				confidence = 0.9
			}

			signals = append(signals, models.Signal{
				Type:       models.SignalSleepLow,
				Window:     w.Name,
				Value:      agg.SleepAvg,
				Baseline:   baseline.SleepHours,
				Deviation:  deviation,
				Confidence: confidence,
			})
		}

		if agg.IsolationAvg > IsolationHighThreshold {
			var deviation *float64
			if !baseline.IsDefault {
				d := agg.IsolationAvg - baseline.Isolation
				deviation = &d
			}

			confidence := 0.7
			if deviation != nil && *deviation > 20 {
				confidence = 0.85
			}

			signals = append(signals, models.Signal{
				Type:       models.SignalIsolationUp,
				Window:     w.Name,
				Value:      agg.IsolationAvg,
				Baseline:   baseline.Isolation,
				Deviation:  deviation,
				Confidence: confidence,
			})
		}

		if agg.AdherenceAvg < AdherenceLowThreshold {
			var deviation *float64
			if !baseline.IsDefault {
				d := agg.AdherenceAvg - baseline.Adherence
				deviation = &d
			}

			signals = append(signals, models.Signal{
				Type:      models.SignalAdherenceLow,
				Window:    w.Name,
				Value:     agg.AdherenceAvg,
				Baseline:  baseline.Adherence,
				Deviation: deviation,
				// 依从度是直接测量值，置信度固定为高
				Confidence: 0.9,
			})
		}

		if agg.CravingsAvg > CravingsHighThreshold {
			var deviation *float64
			if !baseline.IsDefault {
				d := agg.CravingsAvg - baseline.Cravings
				deviation = &d
			}

			signals = append(signals, models.Signal{
				Type:       models.SignalCravingsHigh,
				Window:     w.Name,
				Value:      agg.CravingsAvg,
				Baseline:   baseline.Cravings,
				Deviation:  deviation,
				Confidence: 0.85,
			})
		}

		if agg.MoodAvg < MoodDeclineThreshold {
			var deviation *float64
			if !baseline.IsDefault {
				d := agg.MoodAvg - baseline.MoodTrend
				deviation = &d
			}

			signals = append(signals, models.Signal{
				Type:      models.SignalMoodDecline,
				Window:    w.Name,
				Value:     agg.MoodAvg,
				Baseline:  baseline.MoodTrend,
				Deviation: deviation,
				// 情绪是主观指标，置信度相对保守
				Confidence: 0.75,
			})
		}
	}

	return signals
}
