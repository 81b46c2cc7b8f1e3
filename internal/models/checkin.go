package models

// CheckIn 打卡记录（自报告健康指标）
// 记录一旦写入不可修改，按 ts 升序构成用户的打卡历史
type CheckIn struct {
	ID         int64   `json:"id,omitempty"`
	UserID     string  `json:"user_id"`
	Adherence  int     `json:"adherence"`   // 治疗依从度 0-100
	MoodTrend  int     `json:"mood_trend"`  // 情绪趋势 -10 ~ +10
	Cravings   int     `json:"cravings"`    // 渴求强度 0-100
	SleepHours float64 `json:"sleep_hours"` // 睡眠时长 0-24 小时
	Isolation  int     `json:"isolation"`   // 社交隔离程度 0-100
	TS         string  `json:"ts"`          // ISO-8601 时间戳（字符串存储，窗口聚合时解析）
}

// CheckInEvent checkin:events 消息格式
// 这是 API 层写入打卡记录后发布到 checkin:events 的消息格式
type CheckInEvent struct {
	UserID    string `json:"user_id"`
	CheckinID int64  `json:"checkin_id"`
	TS        string `json:"ts"`
}
