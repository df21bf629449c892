package model

import "time"

// CONFIRMED（非FUND）注文のみ作成
type PaymentRecord struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     int64     `gorm:"not null;uniqueIndex" json:"order_id"`
	UserID      int64     `gorm:"not null;index" json:"user_id"`
	ImpUID      string    `gorm:"type:varchar(255);column:imp_uid" json:"imp_uid"`
	MerchantUID string    `gorm:"type:varchar(255);column:merchant_uid" json:"merchant_uid"`
	Amount      int64     `gorm:"not null" json:"amount"`
	Method      string    `gorm:"type:varchar(50)" json:"method"`
	Status      string    `gorm:"type:varchar(32);not null" json:"status"`
	PaymentData JSONMap   `gorm:"type:jsonb" json:"-"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
