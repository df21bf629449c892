package model

import (
	"time"

	"gorm.io/gorm"
)

type ProductType string

const (
	ProductTypeFund      ProductType = "FUND"
	ProductTypePartnerUp ProductType = "PARTNER_UP"
	ProductTypeGeneral   ProductType = "GENERAL"
)

type Product struct {
	ID          int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string       `gorm:"type:varchar(255);not null" json:"name"`
	Description string       `gorm:"type:text" json:"description"`
	Type        ProductType  `gorm:"type:varchar(20);not null;index" json:"type"`
	Price       int64        `gorm:"not null" json:"price"`
	Stock       int64        `gorm:"not null" json:"stock"`
	IsActive    bool         `gorm:"not null;default:false" json:"is_active"`
	SellerEmail string       `gorm:"type:varchar(255)" json:"seller_email"`
	Options     OptionSchema `gorm:"type:jsonb;default:'[]'" json:"options"`

	// FUND商品のみ使用（deadlineは必須）
	FundingDeadline       *time.Time `json:"funding_deadline,omitempty"`
	FundingGoalAmount     int64      `gorm:"not null;default:0" json:"funding_goal_amount"`
	FundingCurrentAmount  int64      `gorm:"not null;default:0" json:"funding_current_amount"`
	FundingSupporterCount int64      `gorm:"not null;default:0" json:"funding_supporter_count"`

	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p Product) IsFund() bool {
	return p.Type == ProductTypeFund
}
