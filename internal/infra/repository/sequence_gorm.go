package repository

import (
	"context"
	"errors"
	"fmt"

	"pos/internal/domain/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SequenceGormRepository struct {
	db *gorm.DB
}

func NewSequenceGormRepository(db *gorm.DB) *SequenceGormRepository {
	return &SequenceGormRepository{db: db}
}

// UPDATEで行ロックを取ってから読む。
// 同じTx内で使えば、insertと同時にcommit/rollbackされるので欠番も重複も出ない
func (r *SequenceGormRepository) Next(ctx context.Context, name string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Sequence{}).
		Where("name = ?", name).
		Update("value", gorm.Expr("value + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("sequence %q is not initialized", name)
	}

	var s model.Sequence
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&s).Error; err != nil {
		return 0, err
	}
	return s.Value, nil
}

func (r *SequenceGormRepository) Ensure(ctx context.Context, name string, floor int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 既にあれば何もしない
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.Sequence{Name: name, Value: floor}).Error; err != nil {
			return err
		}
		return tx.Model(&model.Sequence{}).
			Where("name = ? AND value < ?", name, floor).
			Update("value", floor).Error
	})
}

func (r *SequenceGormRepository) LastSaleNumber(ctx context.Context) (string, bool, error) {
	var s model.Sale
	err := r.db.WithContext(ctx).
		Select("sale_number").
		Order("sale_number desc").
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return s.SaleNumber, true, nil
}
