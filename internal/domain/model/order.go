package model

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

type BillingStatus string

const (
	BillingStatusNone      BillingStatus = ""
	BillingStatusScheduled BillingStatus = "SCHEDULED"
	BillingStatusFailed    BillingStatus = "FAILED"
)

type Order struct {
	ID          int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      int64       `gorm:"not null;index" json:"user_id"`
	Status      OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	TotalAmount int64       `gorm:"not null" json:"total_amount"`

	ShippingAddress string `gorm:"type:varchar(500);not null" json:"shipping_address"`
	Phone           string `gorm:"type:varchar(50);not null" json:"phone"`
	BuyerName       string `gorm:"type:varchar(255)" json:"buyer_name"`
	BuyerEmail      string `gorm:"type:varchar(255)" json:"buyer_email"`
	Notes           string `gorm:"type:text" json:"notes"`

	// 決済検証済みのスナップショット（非FUNDのみ）
	PaymentInfo JSONMap `gorm:"type:jsonb" json:"payment_info,omitempty"`

	// FUND用の予約課金フィールド
	BillingStatus        BillingStatus `gorm:"type:varchar(20);index" json:"billing_status,omitempty"`
	BillingKey           string        `gorm:"type:varchar(255)" json:"-"`
	BillingPaymentID     string        `gorm:"type:varchar(255)" json:"billing_payment_id,omitempty"`
	BillingScheduleID    string        `gorm:"type:varchar(255)" json:"billing_schedule_id,omitempty"`
	BillingScheduledAt   *time.Time    `json:"billing_scheduled_at,omitempty"`
	BillingExecutedAt    *time.Time    `json:"billing_executed_at,omitempty"`
	BillingFailureReason string        `gorm:"type:text" json:"billing_failure_reason,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
