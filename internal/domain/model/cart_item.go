package model

import "time"

// カート行はユーザー直下。追加時点の単価を必ず保存。
// 注文成功時に消費（削除）される。
type CartItem struct {
	ID                int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID            int64           `gorm:"not null;index" json:"user_id"`
	ProductID         int64           `gorm:"not null;index" json:"product_id"`
	Quantity          int64           `gorm:"not null" json:"quantity"`
	UnitPriceSnapshot int64           `gorm:"not null;column:unit_price_snapshot" json:"unit_price_snapshot"`
	SelectedOptions   SelectedOptions `gorm:"type:jsonb;default:'[]'" json:"selected_options"`
	CreatedAt         time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
