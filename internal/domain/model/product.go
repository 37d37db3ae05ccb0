package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 商品のデフォルト最低在庫
const DefaultMinStock int64 = 5

// stockはInventoryRepository経由でしか更新しない
type Product struct {
	ID          string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name        string          `gorm:"type:varchar(200);not null;index" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Barcode     *string         `gorm:"type:varchar(100);uniqueIndex" json:"barcode,omitempty"`
	SKU         *string         `gorm:"column:sku;type:varchar(50);uniqueIndex" json:"sku,omitempty"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Cost        decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"cost"`
	Stock       int64           `gorm:"not null;default:0" json:"stock"`
	MinStock    int64           `gorm:"not null" json:"min_stock"`
	ImageURL    string          `gorm:"type:varchar(500)" json:"image_url"`
	CategoryID  *string         `gorm:"type:varchar(36);index" json:"category_id,omitempty"`
	IsActive    bool            `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}

// 最低在庫を下回っているか
func (p Product) IsLowStock() bool {
	return p.Stock <= p.MinStock
}
