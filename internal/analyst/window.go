package analyst

import (
	"errors"
	"fmt"
	"time"

	"recoveryos/internal/models"
)

// ErrBadTimestamp 打卡时间戳无法解析
// 时间戳损坏意味着上游数据完整性出了问题，整次分析必须失败，不允许静默跳过
var ErrBadTimestamp = errors.New("bad check-in timestamp")

// parseCheckInTS 解析打卡时间戳（RFC3339，必须带时区）
func parseCheckInTS(ts string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, ts)
	}
	return t, nil
}

// AggregateWindow 聚合指定天数窗口内的打卡指标
// 窗口内没有记录时返回 Available=false，其余字段保持零值
func AggregateWindow(history []models.CheckIn, days int, now time.Time) (models.WindowAggregate, error) {
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	var inWindow []models.CheckIn
	for _, c := range history {
		t, err := parseCheckInTS(c.TS)
		if err != nil {
			return models.WindowAggregate{}, err
		}
		if !t.Before(cutoff) {
			inWindow = append(inWindow, c)
		}
	}

	if len(inWindow) == 0 {
		return models.WindowAggregate{Available: false, Count: 0}, nil
	}

	agg := models.WindowAggregate{
		Available: true,
		Count:     len(inWindow),
		SleepMin:  inWindow[0].SleepHours,
		MoodMin:   inWindow[0].MoodTrend,
	}

	var sleepSum, isolationSum, adherenceSum, cravingsSum, moodSum float64
	adherenceMin := inWindow[0].Adherence
	isolationMax := inWindow[0].Isolation
	cravingsMax := inWindow[0].Cravings

	for _, c := range inWindow {
		sleepSum += c.SleepHours
		isolationSum += float64(c.Isolation)
		adherenceSum += float64(c.Adherence)
		cravingsSum += float64(c.Cravings)
		moodSum += float64(c.MoodTrend)

		if c.SleepHours < agg.SleepMin {
			agg.SleepMin = c.SleepHours
		}
		if c.Isolation > isolationMax {
			isolationMax = c.Isolation
		}
		if c.Adherence < adherenceMin {
			adherenceMin = c.Adherence
		}
		if c.Cravings > cravingsMax {
			cravingsMax = c.Cravings
		}
		if c.MoodTrend < agg.MoodMin {
			agg.MoodMin = c.MoodTrend
		}
	}

	n := float64(len(inWindow))
	agg.SleepAvg = sleepSum / n
	agg.IsolationAvg = isolationSum / n
	agg.IsolationMax = float64(isolationMax)
	agg.AdherenceAvg = adherenceSum / n
	agg.AdherenceMin = float64(adherenceMin)
	agg.CravingsAvg = cravingsSum / n
	agg.CravingsMax = float64(cravingsMax)
	agg.MoodAvg = moodSum / n

	return agg, nil
}

// BuildWindows 构建全部三个分析窗口（3/14/30 天）
func BuildWindows(history []models.CheckIn, now time.Time) (models.WindowSet, error) {
	var windows models.WindowSet

	threeDay, err := AggregateWindow(history, 3, now)
	if err != nil {
		return models.WindowSet{}, err
	}
	fourteenDay, err := AggregateWindow(history, 14, now)
	if err != nil {
		return models.WindowSet{}, err
	}
	thirtyDay, err := AggregateWindow(history, 30, now)
	if err != nil {
		return models.WindowSet{}, err
	}

	windows.ThreeDay = threeDay
	windows.FourteenDay = fourteenDay
	windows.ThirtyDay = thirtyDay

	return windows, nil
}
