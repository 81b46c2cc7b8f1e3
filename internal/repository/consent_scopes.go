package repository

import (
	"context"
	"database/sql"
	"fmt"

	"recoveryos/internal/models"

	"go.uber.org/zap"
)

// ConsentScopesRepository 授权范围仓库（本服务只读）
// 授权的写入与撤销由 API 层完成，这里只负责给审计器提供当前授权
type ConsentScopesRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewConsentScopesRepository 创建授权范围仓库
func NewConsentScopesRepository(db *sql.DB, logger *zap.Logger) *ConsentScopesRepository {
	return &ConsentScopesRepository{
		db:     db,
		logger: logger,
	}
}

// GetScope 获取用户指定类型的最新授权记录
// 不存在时返回 (nil, nil)，由授权检查按"默认拒绝"处理
func (r *ConsentScopesRepository) GetScope(ctx context.Context, userID, scopeType string) (*models.ConsentScope, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if scopeType == "" {
		return nil, fmt.Errorf("scope_type is required")
	}

	query := `
		SELECT
			id,
			user_id,
			scope_type,
			permissions,
			status,
			created_at,
			updated_at
		FROM consent_scopes
		WHERE user_id = $1
		  AND scope_type = $2
		ORDER BY id DESC
		LIMIT 1
	`

	var scope models.ConsentScope
	err := r.db.QueryRowContext(ctx, query, userID, scopeType).Scan(
		&scope.ID,
		&scope.UserID,
		&scope.ScopeType,
		&scope.Permissions,
		&scope.Status,
		&scope.CreatedAt,
		&scope.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // 没有授权记录，默认拒绝
		}
		return nil, fmt.Errorf("failed to query consent scope: %w", err)
	}

	return &scope, nil
}
