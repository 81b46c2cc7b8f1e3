package repository

import (
	"context"
	"database/sql"
	"fmt"

	"recoveryos/internal/models"

	"go.uber.org/zap"
)

// CheckinsRepository 打卡记录仓库
// 打卡记录只追加不修改，历史按 ts 升序返回
type CheckinsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCheckinsRepository 创建打卡记录仓库
func NewCheckinsRepository(db *sql.DB, logger *zap.Logger) *CheckinsRepository {
	return &CheckinsRepository{
		db:     db,
		logger: logger,
	}
}

// CreateCheckIn 写入一条打卡记录
func (r *CheckinsRepository) CreateCheckIn(ctx context.Context, checkin *models.CheckIn) (int64, error) {
	if checkin.UserID == "" {
		return 0, fmt.Errorf("user_id is required")
	}

	query := `
		INSERT INTO checkins (
			user_id,
			adherence,
			mood_trend,
			cravings,
			sleep_hours,
			isolation,
			ts
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		checkin.UserID,
		checkin.Adherence,
		checkin.MoodTrend,
		checkin.Cravings,
		checkin.SleepHours,
		checkin.Isolation,
		checkin.TS,
	).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("failed to create checkin: %w", err)
	}

	return id, nil
}

// GetCheckInHistory 获取用户的完整打卡历史（按 ts 升序）
func (r *CheckinsRepository) GetCheckInHistory(ctx context.Context, userID string) ([]models.CheckIn, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	query := `
		SELECT
			id,
			user_id,
			adherence,
			mood_trend,
			cravings,
			sleep_hours,
			isolation,
			ts
		FROM checkins
		WHERE user_id = $1
		ORDER BY ts ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkin history: %w", err)
	}
	defer rows.Close()

	var history []models.CheckIn
	for rows.Next() {
		var c models.CheckIn
		if err := rows.Scan(
			&c.ID,
			&c.UserID,
			&c.Adherence,
			&c.MoodTrend,
			&c.Cravings,
			&c.SleepHours,
			&c.Isolation,
			&c.TS,
		); err != nil {
			return nil, fmt.Errorf("failed to scan checkin: %w", err)
		}
		history = append(history, c)
	}

	return history, nil
}

// ListActiveUsers 获取指定时间之后有打卡的用户（轮询模式用）
// ts 以 RFC3339 UTC 字符串存储，字典序即时间序
func (r *CheckinsRepository) ListActiveUsers(ctx context.Context, since string) ([]string, error) {
	query := `
		SELECT DISTINCT user_id
		FROM checkins
		WHERE ts >= $1
		ORDER BY user_id
	`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query active users: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan user_id: %w", err)
		}
		userIDs = append(userIDs, userID)
	}

	return userIDs, nil
}
