package repository

import (
	"context"
	"time"

	"pos/internal/domain/model"
)

type SaleListFilter struct {
	Page          int
	Limit         int
	Status        model.SaleStatus
	PaymentMethod model.PaymentMethod
	UserID        *string
	From          *time.Time
	To            *time.Time
}

type SaleRepository interface {
	Create(ctx context.Context, sale model.Sale) error
	FindByID(ctx context.Context, saleID string) (model.Sale, error)

	//検索（同じキーなら同じ結果を返す）
	FindByIdempotencyKey(ctx context.Context, key string) (model.Sale, bool, error)

	// from のステータスのときだけ to に変える。更新できなければ false
	CompareAndSetStatus(ctx context.Context, saleID string, from, to model.SaleStatus) (bool, error)

	List(ctx context.Context, f SaleListFilter) ([]model.Sale, int64, error)

	// [from, to) の売上を新しい順で返す
	ListByRange(ctx context.Context, from, to time.Time, status model.SaleStatus, userID *string) ([]model.Sale, error)

	// 商品を参照している売上（指定ステータス）があるか
	ExistsForProduct(ctx context.Context, productID string, status model.SaleStatus) (bool, error)
}

type SaleItemRepository interface {
	CreateBulk(ctx context.Context, saleID string, items []model.SaleItem) error
	ListBySaleID(ctx context.Context, saleID string) ([]model.SaleItem, error)
	// 複数の売上の明細をまとめて取る（sale_id -> 明細）
	ListBySaleIDs(ctx context.Context, saleIDs []string) (map[string][]model.SaleItem, error)
}

// 名前付き連番。呼び出し側のトランザクション内で進める
type SequenceRepository interface {
	// +1 した値を返す
	Next(ctx context.Context, name string) (int64, error)

	// 行がなければ作り、値を floor 以上にそろえる
	Ensure(ctx context.Context, name string, floor int64) error

	// 最後に作られた売上番号（起動時の初期値用）
	LastSaleNumber(ctx context.Context) (string, bool, error)
}
