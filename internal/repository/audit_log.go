package repository

import (
	"context"
	"database/sql"
	"fmt"

	"recoveryos/internal/models"

	"go.uber.org/zap"
)

// AuditLogRepository 审计日志仓库
// 只追加、写入后不可变：没有任何 update/delete 方法
type AuditLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditLogRepository 创建审计日志仓库
func NewAuditLogRepository(db *sql.DB, logger *zap.Logger) *AuditLogRepository {
	return &AuditLogRepository{
		db:     db,
		logger: logger,
	}
}

// Append 追加一条审计记录
func (r *AuditLogRepository) Append(ctx context.Context, entry *models.AuditLogEntry) (int64, error) {
	if entry.Agent == "" {
		return 0, fmt.Errorf("agent is required")
	}
	if entry.UserIDHash == "" {
		return 0, fmt.Errorf("user_id_hash is required")
	}

	query := `
		INSERT INTO audit_log (
			agent,
			decision,
			user_id_hash,
			input_refs,
			rules_fired,
			outputs,
			metadata,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		entry.Agent,
		entry.Decision,
		entry.UserIDHash,
		entry.InputRefs,
		entry.RulesFired,
		entry.Outputs,
		entry.Metadata,
		entry.CreatedAt,
	).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("failed to append audit log: %w", err)
	}

	return id, nil
}

// CountByAgent 统计某个 Agent 的审计记录数（自检用）
func (r *AuditLogRepository) CountByAgent(ctx context.Context, agent string) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM audit_log
		WHERE agent = $1
	`

	var count int64
	err := r.db.QueryRowContext(ctx, query, agent).Scan(&count)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to count audit log: %w", err)
	}

	return count, nil
}
