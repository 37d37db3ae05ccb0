package repository

import (
	"context"

	"pos/internal/domain/model"

	"gorm.io/gorm"
)

type SaleItemGormRepository struct {
	db *gorm.DB
}

func NewSaleItemGormRepository(db *gorm.DB) *SaleItemGormRepository {
	return &SaleItemGormRepository{db: db}
}

func (r *SaleItemGormRepository) CreateBulk(ctx context.Context, saleID string, items []model.SaleItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].SaleID = saleID
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *SaleItemGormRepository) ListBySaleID(ctx context.Context, saleID string) ([]model.SaleItem, error) {
	var items []model.SaleItem
	err := r.db.WithContext(ctx).Where("sale_id = ?", saleID).Order("line_no asc").Find(&items).Error
	if err != nil {
		return []model.SaleItem{}, err
	}
	return items, nil
}

func (r *SaleItemGormRepository) ListBySaleIDs(ctx context.Context, saleIDs []string) (map[string][]model.SaleItem, error) {
	out := make(map[string][]model.SaleItem, len(saleIDs))
	if len(saleIDs) == 0 {
		return out, nil
	}

	var items []model.SaleItem
	err := r.db.WithContext(ctx).Where("sale_id IN ?", saleIDs).Order("sale_id").Order("line_no asc").Find(&items).Error
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		out[it.SaleID] = append(out[it.SaleID], it)
	}
	return out, nil
}
