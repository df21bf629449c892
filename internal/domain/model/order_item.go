package model

import "time"

// 作成後は不変。変更はキャンセル＋再作成のみ。
type OrderItem struct {
	ID                  int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID             int64           `gorm:"not null;index" json:"order_id"`
	ProductID           int64           `gorm:"not null;index" json:"product_id"`
	ProductNameSnapshot string          `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	UnitPriceSnapshot   int64           `gorm:"not null" json:"unit_price_snapshot"`
	Quantity            int64           `gorm:"not null" json:"quantity"`
	SelectedOptions     SelectedOptions `gorm:"type:jsonb;default:'[]'" json:"selected_options"`
	CreatedAt           time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}
