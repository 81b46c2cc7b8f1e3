package analyst_test

import (
	"time"

	"recoveryos/internal/models"
)

// 测试用固定"当前时间"，所有窗口截止点都相对它构造
var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// checkInAt 构造一条打卡记录，age 为距 testNow 的时长
func checkInAt(age time.Duration, sleep float64, isolation, adherence, cravings, mood int) models.CheckIn {
	return models.CheckIn{
		UserID:     "user-1",
		SleepHours: sleep,
		Isolation:  isolation,
		Adherence:  adherence,
		Cravings:   cravings,
		MoodTrend:  mood,
		TS:         testNow.Add(-age).Format(time.RFC3339),
	}
}

// healthyCheckIn 构造一条全部指标都在正常范围内的打卡
func healthyCheckIn(age time.Duration) models.CheckIn {
	return checkInAt(age, 7.5, 20, 90, 20, 2)
}

func day(n float64) time.Duration {
	return time.Duration(n * 24 * float64(time.Hour))
}
