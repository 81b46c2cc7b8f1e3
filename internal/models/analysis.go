package models

// RiskBand 风险等级
type RiskBand string

const (
	RiskBandInsufficientData RiskBand = "insufficient_data"
	RiskBandLow              RiskBand = "low"
	RiskBandElevated         RiskBand = "elevated"
	RiskBandModerate         RiskBand = "moderate"
	RiskBandHigh             RiskBand = "high"
)

// SignalType 风险信号类型
type SignalType string

const (
	SignalSleepLow     SignalType = "sleep_low"
	SignalIsolationUp  SignalType = "isolation_up"
	SignalAdherenceLow SignalType = "adherence_low"
	SignalCravingsHigh SignalType = "cravings_high"
	SignalMoodDecline  SignalType = "mood_decline"
)

// WindowName 分析窗口名称
type WindowName string

const (
	Window3Day  WindowName = "3day"
	Window14Day WindowName = "14day"
	Window30Day WindowName = "30day"
)

// Baseline 用户基线（取前 10 条打卡的均值）
// 打卡不足 3 条时使用人群默认值，IsDefault=true
type Baseline struct {
	SleepHours float64 `json:"sleep_hours"`
	Isolation  float64 `json:"isolation"`
	Adherence  float64 `json:"adherence"`
	Cravings   float64 `json:"cravings"`
	MoodTrend  float64 `json:"mood_trend"`
	IsDefault  bool    `json:"is_default"`
}

// WindowAggregate 单个时间窗口的聚合指标
// Available=false 时其余字段均为零值
type WindowAggregate struct {
	Available    bool    `json:"available"`
	Count        int     `json:"count"`
	SleepAvg     float64 `json:"sleep_avg"`
	SleepMin     float64 `json:"sleep_min"`
	IsolationAvg float64 `json:"isolation_avg"`
	IsolationMax float64 `json:"isolation_max"`
	AdherenceAvg float64 `json:"adherence_avg"`
	AdherenceMin float64 `json:"adherence_min"`
	CravingsAvg  float64 `json:"cravings_avg"`
	CravingsMax  float64 `json:"cravings_max"`
	MoodAvg      float64 `json:"mood_avg"`
	MoodMin      int     `json:"mood_min"`
}

// WindowSet 三个分析窗口的聚合结果
type WindowSet struct {
	ThreeDay    WindowAggregate `json:"3day"`
	FourteenDay WindowAggregate `json:"14day"`
	ThirtyDay   WindowAggregate `json:"30day"`
}

// Ordered 按固定顺序（3day → 14day → 30day）返回窗口
// 信号检测和序列化都依赖这个顺序，保证结果可复现
func (w *WindowSet) Ordered() []struct {
	Name      WindowName
	Aggregate *WindowAggregate
} {
	return []struct {
		Name      WindowName
		Aggregate *WindowAggregate
	}{
		{Window3Day, &w.ThreeDay},
		{Window14Day, &w.FourteenDay},
		{Window30Day, &w.ThirtyDay},
	}
}

// Signal 检测到的单个风险信号
type Signal struct {
	Type       SignalType `json:"type"`
	Window     WindowName `json:"window"`
	Value      float64    `json:"value"`
	Baseline   float64    `json:"baseline"`
	Deviation  *float64   `json:"deviation"` // 相对基线的偏移；基线为默认值时为 null
	Confidence float64    `json:"confidence"`
}

// AnalysisMetadata 分析元数据
// 数据不足时只填 CheckinsCount/MinRequired，完整分析时填其余字段
type AnalysisMetadata struct {
	CheckinsCount    int       `json:"checkins_count,omitempty"`
	MinRequired      int       `json:"min_required,omitempty"`
	CheckinsAnalyzed int       `json:"checkins_analyzed,omitempty"`
	Baselines        *Baseline `json:"baselines,omitempty"`
	WindowsAvailable []string  `json:"windows_available,omitempty"`
}

// PatternsAnalysisResult 模式分析结果
// Score 仅在 RiskBand 为 insufficient_data 时为 nil
type PatternsAnalysisResult struct {
	RiskBand    RiskBand         `json:"risk_band"`
	Score       *int             `json:"score"`
	Signals     []Signal         `json:"signals"`
	Windows     WindowSet        `json:"windows"`
	ReasonCodes []string         `json:"reason_codes"`
	Confidence  float64          `json:"confidence"`
	Metadata    AnalysisMetadata `json:"metadata"`
}
