package repository

import (
	"context"
	"time"

	"pos/internal/domain/model"
)

// 監査ログの絞り込み。期間は [From, To)
type AuditLogFilter struct {
	ActorUserID  *string
	Action       *model.AuditAction
	ResourceType *model.AuditResourceType
	ResourceID   *string
	From         *time.Time
	To           *time.Time
	Page         int
	Limit        int
}

// 監査ログの保存と検索
type AuditLogRepository interface {
	//在庫修正・売上取消・ユーザー編集などと同じトランザクションで書く
	Create(ctx context.Context, log model.AuditLog) error

	//新しい順。totalはページ分割前の件数
	List(ctx context.Context, filter AuditLogFilter) ([]model.AuditLog, int64, error)
}
