package repository

import (
	"context"
	"errors"

	"pos/internal/domain/model"
	repo "pos/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

// 在庫が足りるときだけ減らす。判定と減算は1文のUPDATE
func (r *InventoryGormRepository) TryReserve(ctx context.Context, productID string, qty int64) (bool, error) {
	if qty <= 0 {
		return false, errors.New("qty must be positive")
	}
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		Update("stock", gorm.Expr("stock - ?", qty))

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// 在庫戻し（取消）
func (r *InventoryGormRepository) Release(ctx context.Context, productID string, qty int64) error {
	if qty <= 0 {
		return errors.New("qty must be positive")
	}
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", productID).
		Update("stock", gorm.Expr("stock + ?", qty))

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 在庫の現在値を設定。行ロックで変更前の値を確定させる
func (r *InventoryGormRepository) SetStock(ctx context.Context, productID string, newStock int64) (int64, error) {
	if newStock < 0 {
		return 0, errors.New("stock must be >= 0")
	}

	var previous int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Product
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "stock").
			Where("id = ?", productID).
			First(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repo.ErrNotFound
		}
		if err != nil {
			return err
		}
		previous = p.Stock

		return tx.Model(&model.Product{}).
			Where("id = ?", productID).
			Update("stock", newStock).Error
	})
	if err != nil {
		return 0, err
	}
	return previous, nil
}

// 在庫変動の履歴作成
func (r *InventoryGormRepository) RecordMovement(ctx context.Context, m model.StockMovement) error {
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *InventoryGormRepository) ListMovements(ctx context.Context, productID string, limit int) ([]model.StockMovement, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []model.StockMovement
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("id desc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return []model.StockMovement{}, err
	}
	return out, nil
}
