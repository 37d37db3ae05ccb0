package usecase

import (
	"context"
	"time"

	"pos/internal/domain/model"
)

// 操作しているユーザー（JWTから取り出したもの）
type Actor struct {
	UserID string
	Role   model.Role
}

func (a Actor) Can(p model.Permission) bool {
	return model.RolePermissions.Allows(a.Role, p)
}

// 他人のデータも見られないなら自分のIDで絞る
func (a Actor) scope(all model.Permission) *string {
	if a.Can(all) {
		return nil
	}
	id := a.UserID
	return &id
}

// レポート結果のキャッシュ。売上が確定/取消されたら Invalidate
// Get/Setには集計前に一度だけ読んだ世代を渡す
type ReportCache interface {
	Generation(ctx context.Context) (int64, error)
	Get(ctx context.Context, gen int64, key string, dst any) (bool, error)
	Set(ctx context.Context, gen int64, key string, v any, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

// キャッシュなし
type NoopReportCache struct{}

func (NoopReportCache) Generation(context.Context) (int64, error)                    { return 0, nil }
func (NoopReportCache) Get(context.Context, int64, string, any) (bool, error)        { return false, nil }
func (NoopReportCache) Set(context.Context, int64, string, any, time.Duration) error { return nil }
func (NoopReportCache) Invalidate(context.Context) error                             { return nil }
