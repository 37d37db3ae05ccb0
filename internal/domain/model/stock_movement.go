package model

import "time"

type StockMovementReason string

const (
	StockMovementSale       StockMovementReason = "SALE"
	StockMovementCancel     StockMovementReason = "CANCEL"
	StockMovementAdjustment StockMovementReason = "ADJUSTMENT"
)

// 在庫変動の履歴
// Deltaは増加がプラス、減少がマイナス
type StockMovement struct {
	ID          int64               `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID   string              `gorm:"type:varchar(36);not null;index" json:"product_id"`
	Reason      StockMovementReason `gorm:"type:varchar(20);not null;index" json:"reason"`
	Delta       int64               `gorm:"not null" json:"delta"`
	ReferenceID *string             `gorm:"type:varchar(36);index" json:"reference_id,omitempty"`
	ActorUserID string              `gorm:"type:varchar(36);not null;index" json:"actor_user_id"`
	Note        string              `gorm:"type:varchar(255)" json:"note"`
	CreatedAt   time.Time           `gorm:"not null;autoCreateTime" json:"created_at"`
}
