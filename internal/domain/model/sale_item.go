package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 売上明細。作成後は変更しない
// 商品名・単価は売上時点のスナップショット
type SaleItem struct {
	ID          string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	SaleID      string          `gorm:"type:varchar(36);not null;index" json:"sale_id"`
	// カートでの行番号（0始まり）
	LineNo      int             `gorm:"not null;default:0" json:"line_no"`
	ProductID   string          `gorm:"type:varchar(36);not null;index" json:"product_id"`
	ProductName string          `gorm:"type:varchar(200);not null" json:"product_name"`
	Quantity    int64           `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	Discount    decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"discount"`
	CreatedAt   time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}
