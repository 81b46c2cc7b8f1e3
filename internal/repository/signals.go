package repository

import (
	"context"
	"database/sql"
	"fmt"

	"recoveryos/internal/models"

	"go.uber.org/zap"
)

// SignalsRepository 风险信号仓库（只追加）
type SignalsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSignalsRepository 创建风险信号仓库
func NewSignalsRepository(db *sql.DB, logger *zap.Logger) *SignalsRepository {
	return &SignalsRepository{
		db:     db,
		logger: logger,
	}
}

// CreateSignal 写入一条风险信号记录
func (r *SignalsRepository) CreateSignal(ctx context.Context, rec *models.SignalRecord) (int64, error) {
	if rec.UserID == "" {
		return 0, fmt.Errorf("user_id is required")
	}
	if rec.SignalType == "" {
		return 0, fmt.Errorf("signal_type is required")
	}

	query := `
		INSERT INTO signals (
			user_id,
			signal_type,
			window,
			value,
			baseline,
			deviation,
			confidence,
			reason_codes,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		rec.UserID,
		rec.SignalType,
		rec.Window,
		rec.Value,
		rec.Baseline,
		rec.Deviation,
		rec.Confidence,
		rec.ReasonCodes,
		rec.CreatedAt,
	).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("failed to create signal: %w", err)
	}

	return id, nil
}

// GetRecentSignals 获取用户最近的信号记录（临床简报导出用，按写入时间倒序）
func (r *SignalsRepository) GetRecentSignals(ctx context.Context, userID string, limit int) ([]models.SignalRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT
			id,
			user_id,
			signal_type,
			window,
			value,
			baseline,
			deviation,
			confidence,
			reason_codes,
			created_at
		FROM signals
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var records []models.SignalRecord
	for rows.Next() {
		var rec models.SignalRecord
		var baseline, deviation sql.NullFloat64

		if err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.SignalType,
			&rec.Window,
			&rec.Value,
			&baseline,
			&deviation,
			&rec.Confidence,
			&rec.ReasonCodes,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}

		if baseline.Valid {
			rec.Baseline = &baseline.Float64
		}
		if deviation.Valid {
			rec.Deviation = &deviation.Float64
		}

		records = append(records, rec)
	}

	return records, nil
}
