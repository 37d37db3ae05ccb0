package repository

import (
	"context"

	"pos/internal/domain/model"
)

// 在庫の唯一の更新窓口。差分でしか更新しない（SetStockは管理者の棚卸し用）
type InventoryRepository interface {
	// 在庫が足りるときだけ減算。足りなければ false
	TryReserve(ctx context.Context, productID string, qty int64) (bool, error)

	// 在庫戻し（取消）。商品がなければ ErrNotFound
	Release(ctx context.Context, productID string, qty int64) error

	// 在庫の現在値を設定し、変更前の値を返す
	SetStock(ctx context.Context, productID string, newStock int64) (int64, error)

	// 在庫変動の履歴作成
	RecordMovement(ctx context.Context, m model.StockMovement) error

	ListMovements(ctx context.Context, productID string, limit int) ([]model.StockMovement, error)
}
