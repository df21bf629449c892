package model

import "time"

// ユーザーごとの最新billing keyキャッシュ（正はゲートウェイ側）
type BillingCustomer struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      int64      `gorm:"not null;uniqueIndex" json:"user_id"`
	BillingKey  string     `gorm:"type:varchar(255);not null" json:"billing_key"`
	ChannelKey  string     `gorm:"type:varchar(255)" json:"channel_key"`
	PGProvider  string     `gorm:"type:varchar(100)" json:"pg_provider"`
	IssuedAt    *time.Time `json:"issued_at,omitempty"`
	RawResponse JSONMap    `gorm:"type:jsonb" json:"-"`
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
