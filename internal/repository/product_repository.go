package repository

import (
	"context"
	"errors"

	"pos/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 一意制約違反（バーコード重複、冪等キー重複など）
var ErrDuplicate = errors.New("duplicate")

// 一覧検索
type ProductListQuery struct {
	Page       int
	Limit      int
	Q          string
	CategoryID *string
	LowStock   bool
	// falseなら公開中の商品だけ
	IncludeInactive bool
}

// 商品の永続化（保存・取得）だけを約束。
// stockはここでは書き換えない（InventoryRepositoryの担当）
type ProductRepository interface {
	List(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)
	FindByID(ctx context.Context, id string) (model.Product, error)

	Create(ctx context.Context, p model.Product) (model.Product, error)
	Update(ctx context.Context, p model.Product) error
	SoftDelete(ctx context.Context, id string) error
}
