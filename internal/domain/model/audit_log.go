package model

import "time"

// 管理者操作の種類
type AuditAction string

const (
	//在庫を直接修正した操作。
	AuditActionUpdateStock AuditAction = "UPDATE_STOCK"
	//売上を取り消した操作。
	AuditActionCancelSale AuditAction = "CANCEL_SALE"
	AuditActionCreateProduct AuditAction = "CREATE_PRODUCT"
	AuditActionUpdateProduct AuditAction = "UPDATE_PRODUCT"
	AuditActionDeleteProduct AuditAction = "DELETE_PRODUCT"
	//ユーザーの有効/無効を切り替えた操作。
	AuditActionUpdateUserStatus AuditAction = "UPDATE_USER_STATUS"
	AuditActionUpdateUser       AuditAction = "UPDATE_USER"
	//管理者によるパスワード再設定。
	AuditActionChangePassword AuditAction = "CHANGE_USER_PASSWORD"
)

// 何に対する操作か
type AuditResourceType string

const (
	AuditResourceProduct AuditResourceType = "product"
	AuditResourceSale    AuditResourceType = "sale"
	AuditResourceUser    AuditResourceType = "user"
)

// 監査ログ（管理者操作ログ）。
// 「誰が」「何を」「どの対象に」「どう変えたか」を残す。
type AuditLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//操作したユーザーのID。
	ActorUserID string `gorm:"type:varchar(36);not null;index" json:"actor_user_id"`

	Action AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`

	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`

	ResourceID string `gorm:"type:varchar(36);not null;index" json:"resource_id"`

	//JSON文字列で保存する。
	BeforeJSON string `gorm:"type:text" json:"before_json"`
	AfterJSON  string `gorm:"type:text" json:"after_json"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
