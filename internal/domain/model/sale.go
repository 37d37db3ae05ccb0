package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type SaleStatus string

const (
	SaleStatusCompleted SaleStatus = "COMPLETED"
	SaleStatusCancelled SaleStatus = "CANCELLED"
	// 予約済み。作成・遷移する処理はない
	SaleStatusPending SaleStatus = "PENDING"
)

func (s SaleStatus) Valid() bool {
	switch s {
	case SaleStatusCompleted, SaleStatusCancelled, SaleStatusPending:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "CASH"
	PaymentCard     PaymentMethod = "CARD"
	PaymentTransfer PaymentMethod = "TRANSFER"
	PaymentOther    PaymentMethod = "OTHER"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentOther:
		return true
	}
	return false
}

// 売上番号
const (
	SaleNumberPrefix   = "VTA-"
	SaleNumberSequence = "sale_number"
	saleNumberDigits   = 6
)

// 連番からVTA-000001の形式にする
func FormatSaleNumber(n int64) string {
	return fmt.Sprintf("%s%0*d", SaleNumberPrefix, saleNumberDigits, n)
}

// VTA-000123 -> 123
func ParseSaleNumber(s string) (int64, error) {
	raw, ok := strings.CutPrefix(s, SaleNumberPrefix)
	if !ok || raw == "" {
		return 0, fmt.Errorf("invalid sale number %q", s)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid sale number %q", s)
	}
	return n, nil
}

// 売上ヘッダ。total = subtotal + tax - discount
type Sale struct {
	ID             string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	SaleNumber     string          `gorm:"type:varchar(50);not null;uniqueIndex" json:"sale_number"`
	UserID         string          `gorm:"type:varchar(36);not null;index" json:"user_id"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	Tax            decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"tax"`
	Discount       decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"discount"`
	Total          decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total"`
	PaymentMethod  PaymentMethod   `gorm:"type:varchar(20);not null" json:"payment_method"`
	CustomerName   *string         `gorm:"type:varchar(200)" json:"customer_name,omitempty"`
	Status         SaleStatus      `gorm:"type:varchar(20);not null;index" json:"status"`
	// user_id + ":" + ヘッダーのキー
	IdempotencyKey *string         `gorm:"type:varchar(300);uniqueIndex" json:"-"`
	CreatedAt      time.Time       `gorm:"not null;index" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null" json:"updated_at"`

	Items []SaleItem `gorm:"foreignKey:SaleID" json:"items,omitempty"`
}
