package gateway

import (
	"context"
	"errors"
	"time"
)

var (
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrBillingKeyNotFound = errors.New("billing key not found")
)

// 検証済み取引のスナップショット。Order.payment_infoに保存される。
type Transaction struct {
	ID         string         `json:"id"`
	MerchantID string         `json:"merchant_id"`
	Status     string         `json:"status"` // "paid" 以外は未完了扱い
	Amount     int64          `json:"amount"`
	Currency   string         `json:"currency"`
	Method     string         `json:"method"`
	BuyerName  string         `json:"buyer_name"`
	BuyerEmail string         `json:"buyer_email"`
	BuyerTel   string         `json:"buyer_tel"`
	ReceiptURL string         `json:"receipt_url"`
	PaidAt     *time.Time     `json:"paid_at,omitempty"`
	Raw        map[string]any `json:"-"`
}

type BillingKeyInfo struct {
	BillingKey string
	ChannelKey string
	PGProvider string
	IssuedAt   *time.Time
	Raw        map[string]any
}

type ScheduleRequest struct {
	PaymentID  string
	BillingKey string
	OrderName  string
	Amount     int64
	Currency   string
	TimeToPay  time.Time
}

type ScheduleResult struct {
	ScheduleID string
	Raw        map[string]any
}

// 決済ゲートウェイとの契約。実装は internal/infra/gateway。
type Client interface {
	GetPayment(ctx context.Context, paymentID string) (Transaction, error)
	PreRegisterPayment(ctx context.Context, paymentID string, amount int64, currency string) error
	GetBillingKeyInfo(ctx context.Context, billingKey string) (BillingKeyInfo, error)
	CreatePaymentSchedule(ctx context.Context, req ScheduleRequest) (ScheduleResult, error)
}
