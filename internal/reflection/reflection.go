package reflection

import (
	"fmt"
	"math"

	"recoveryos/internal/models"
)

// 版本号随评分公式与文案模板演进
const (
	RiskScoreVersion = "0.1.0"
	PromptVersion    = "0.1.0"
)

// MinCheckinsForScore 宽限期：历史打卡少于该值时不做即时评分
const MinCheckinsForScore = 3

// StateInsufficientData 宽限期内返回的状态标记
const StateInsufficientData = "insufficient_data"

// CrisisFooter 每次反馈都附带的危机提示
const CrisisFooter = "You’re not alone. If you’re in crisis, text 988 (or your local equivalent)."

// QuickCheckIn 单次打卡的即时评分输入
// 与 analyst 的历史模式分析不同，这里只用当次打卡的字段做轻量评分
type QuickCheckIn struct {
	UserID        string `json:"user_id"`
	CheckinsCount int    `json:"checkins_count"`

	// 依从性代理指标：距上次打卡的天数（0=活跃，越大越差）
	DaysSinceLastCheckin *int `json:"days_since_last_checkin,omitempty"`

	Craving      *float64 `json:"craving,omitempty"`       // 0-10
	Mood         *int     `json:"mood,omitempty"`          // 1-5，1 最低落
	PreviousMood *int     `json:"previous_mood,omitempty"` // 上一次心情，用于趋势

	// 睡眠：质量与时长可同时提供，取风险更高的解释
	SleepQuality string   `json:"sleep_quality,omitempty"` // poor/average/good
	SleepHours   *float64 `json:"sleep_hours,omitempty"`   // 0-24

	IsolationLevel string `json:"isolation_level,omitempty"` // none/sometimes/often

	Note string `json:"note,omitempty"`
}

// QuickScoreResult 即时评分结果
type QuickScoreResult struct {
	RiskScoreVersion string `json:"risk_score_version"`
	Score            *int   `json:"score"`
	Band             string `json:"band,omitempty"`
	State            string `json:"state,omitempty"`
	Reflection       string `json:"reflection"`
	CrisisFooter     string `json:"crisis_footer"`
	PromptVersion    string `json:"prompt_version"`
}

// 各特征权重（总和 100）
var featureWeights = map[string]int{
	"adherence": 25,
	"craving":   30,
	"mood":      15,
	"sleep":     15,
	"isolation": 15,
}

var sleepQualityRisk = map[string]float64{
	"poor":    100.0,
	"average": 50.0,
	"good":    0.0,
}

var isolationRisk = map[string]float64{
	"none":      0.0,
	"sometimes": 50.0,
	"often":     100.0,
}

// 各风险等级的固定反馈文案
var reflectionTemplates = map[string]string{
	"insufficient": "We don’t yet have enough check-ins to assess risk. Keep checking in; every entry strengthens your recovery.",
	"low":          "You’re steady today. Let’s keep building on what’s working—one small healthy choice at a time.",
	"moderate":     "Some stress signals showed up. What’s one support or coping tool you can use in the next hour?",
	"elevated":     "Several stress points are present. Consider pausing now to breathe, text a supporter, or use a craving coping skill.",
	"high":         "Today looks tough. You’re not alone—reach out to your supports now. Safety first, one step at a time.",
}

// Validate 校验输入取值范围
func (c *QuickCheckIn) Validate() error {
	if c.CheckinsCount < 0 {
		return fmt.Errorf("checkins_count must be >= 0, got %d", c.CheckinsCount)
	}
	if c.DaysSinceLastCheckin != nil && *c.DaysSinceLastCheckin < 0 {
		return fmt.Errorf("days_since_last_checkin must be >= 0, got %d", *c.DaysSinceLastCheckin)
	}
	if c.Craving != nil && (*c.Craving < 0 || *c.Craving > 10) {
		return fmt.Errorf("craving must be in [0,10], got %g", *c.Craving)
	}
	if c.Mood != nil && (*c.Mood < 1 || *c.Mood > 5) {
		return fmt.Errorf("mood must be in [1,5], got %d", *c.Mood)
	}
	if c.PreviousMood != nil && (*c.PreviousMood < 1 || *c.PreviousMood > 5) {
		return fmt.Errorf("previous_mood must be in [1,5], got %d", *c.PreviousMood)
	}
	if c.SleepQuality != "" {
		if _, ok := sleepQualityRisk[c.SleepQuality]; !ok {
			return fmt.Errorf("sleep_quality must be one of poor/average/good, got %q", c.SleepQuality)
		}
	}
	if c.SleepHours != nil && (*c.SleepHours < 0 || *c.SleepHours > 24) {
		return fmt.Errorf("sleep_hours must be in [0,24], got %g", *c.SleepHours)
	}
	if c.IsolationLevel != "" {
		if _, ok := isolationRisk[c.IsolationLevel]; !ok {
			return fmt.Errorf("isolation_level must be one of none/sometimes/often, got %q", c.IsolationLevel)
		}
	}
	if len(c.Note) > 500 {
		return fmt.Errorf("note must be at most 500 characters, got %d", len(c.Note))
	}
	return nil
}

// Score 对单次打卡做即时评分并生成反馈文案
func Score(c *QuickCheckIn) *QuickScoreResult {
	// 宽限期：数据不足时不评分，只返回鼓励文案
	if c.CheckinsCount < MinCheckinsForScore {
		return &QuickScoreResult{
			RiskScoreVersion: RiskScoreVersion,
			State:            StateInsufficientData,
			Reflection:       reflectionTemplates["insufficient"],
			CrisisFooter:     CrisisFooter,
			PromptVersion:    PromptVersion,
		}
	}

	daysSince := 0
	if c.DaysSinceLastCheckin != nil {
		daysSince = *c.DaysSinceLastCheckin
	}

	fAdherence := normalizeAdherence(daysSince)
	fCraving := normalizeCraving(c.Craving)
	fMood := normalizeMood(c.Mood, c.PreviousMood)
	fSleep := normalizeSleep(c.SleepQuality, c.SleepHours)
	fIsolation := normalizeIsolation(c.IsolationLevel)

	score := int(math.Round(
		float64(featureWeights["adherence"])*fAdherence/100.0 +
			float64(featureWeights["craving"])*fCraving/100.0 +
			float64(featureWeights["mood"])*fMood/100.0 +
			float64(featureWeights["sleep"])*fSleep/100.0 +
			float64(featureWeights["isolation"])*fIsolation/100.0,
	))

	band := BandFromScore(score)
	return &QuickScoreResult{
		RiskScoreVersion: RiskScoreVersion,
		Score:            &score,
		Band:             string(band),
		Reflection:       reflectionTemplates[string(band)],
		CrisisFooter:     CrisisFooter,
		PromptVersion:    PromptVersion,
	}
}

// normalizeAdherence 距上次打卡天数归一化：0 天无风险，5 天及以上封顶
func normalizeAdherence(daysSince int) float64 {
	return clampPercent(float64(daysSince) / 5.0 * 100.0)
}

func normalizeCraving(craving *float64) float64 {
	if craving == nil {
		return 0.0
	}
	return *craving / 10.0 * 100.0
}

// normalizeMood 心情越低风险越高；有上次心情时叠加趋势修正
func normalizeMood(mood, prev *int) float64 {
	if mood == nil {
		return 0.0
	}
	base := float64(5-*mood) / 4.0 * 100.0
	trend := 0.0
	if prev != nil {
		if *mood < *prev {
			trend = 10.0
		} else if *mood > *prev {
			trend = -10.0
		}
	}
	return clampPercent(base + trend)
}

// normalizeSleep 睡眠质量与时长各自给出风险值，取更高者
func normalizeSleep(quality string, hours *float64) float64 {
	vals := []float64{}
	if quality != "" {
		v, ok := sleepQualityRisk[quality]
		if !ok {
			v = 50.0
		}
		vals = append(vals, v)
	}
	if hours != nil {
		h := *hours
		switch {
		case h < 6:
			vals = append(vals, 90.0)
		case h <= 8:
			vals = append(vals, 20.0)
		case h <= 9:
			vals = append(vals, 30.0)
		default:
			vals = append(vals, 40.0)
		}
	}
	if len(vals) == 0 {
		return 0.0
	}
	highest := vals[0]
	for _, v := range vals[1:] {
		if v > highest {
			highest = v
		}
	}
	return highest
}

func normalizeIsolation(level string) float64 {
	if level == "" {
		level = "none"
	}
	return isolationRisk[level]
}

// BandFromScore 即时评分的等级划分
// 注意边界与 analyst 的历史分析划分不同，两套等级各自独立演进
func BandFromScore(score int) models.RiskBand {
	switch {
	case score <= 29:
		return models.RiskBandLow
	case score <= 54:
		return models.RiskBandModerate
	case score <= 74:
		return models.RiskBandElevated
	default:
		return models.RiskBandHigh
	}
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
