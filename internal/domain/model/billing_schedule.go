package model

import "time"

// 注文ごとに1件だけ作成。状態遷移はゲートウェイの実課金側（スコープ外）。
type BillingSchedule struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     int64     `gorm:"not null;uniqueIndex" json:"order_id"`
	UserID      int64     `gorm:"not null;index" json:"user_id"`
	BillingKey  string    `gorm:"type:varchar(255);not null" json:"-"`
	PaymentID   string    `gorm:"type:varchar(255);not null" json:"payment_id"`
	ScheduleID  string    `gorm:"type:varchar(255);not null" json:"schedule_id"`
	ChannelKey  string    `gorm:"type:varchar(255)" json:"channel_key"`
	Amount      int64     `gorm:"not null" json:"amount"`
	Currency    string    `gorm:"type:varchar(8);not null" json:"currency"`
	Status      string    `gorm:"type:varchar(32);not null" json:"status"`
	ScheduledAt time.Time `gorm:"not null" json:"scheduled_at"`

	// 実課金時にリプレイするファンディング加算指示
	Payload      JSONMap   `gorm:"type:jsonb" json:"payload,omitempty"`
	ResponseData JSONMap   `gorm:"type:jsonb" json:"-"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
