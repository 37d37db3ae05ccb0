package model

// 名前付きの連番カウンタ（売上番号など）
type Sequence struct {
	Name  string `gorm:"type:varchar(50);primaryKey"`
	Value int64  `gorm:"not null;default:0"`
}
