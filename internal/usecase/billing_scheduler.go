package usecase

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"app/internal/domain/model"
	gw "app/internal/gateway"
	repo "app/internal/repository"

	"go.uber.org/zap"
)

const billingCurrency = "KRW"

type BillingInput struct {
	BillingKey string `json:"billing_key"`
	PaymentID  string `json:"payment_id"`
}

type billingResult struct {
	BillingKey  string
	PaymentID   string
	ScheduleID  string
	ChannelKey  string
	PGProvider  string
	IssuedAt    *time.Time
	ScheduledAt time.Time
	Response    map[string]any
}

// FUND分岐のスケジューラ。
// RESOLVE_BILLING_KEY → PRE_REGISTER → CREATE_SCHEDULE → UPSERT_BILLING_CUSTOMER
// 前半2ステップはbest-effort、CREATE_SCHEDULEだけが致命。
type BillingScheduler struct {
	gateway          gw.Client
	billingCustomers repo.BillingCustomerRepository
	log              *zap.Logger
}

func NewBillingScheduler(gateway gw.Client, billingCustomers repo.BillingCustomerRepository, log *zap.Logger) *BillingScheduler {
	return &BillingScheduler{gateway: gateway, billingCustomers: billingCustomers, log: log}
}

func (s *BillingScheduler) Schedule(ctx context.Context, userID int64, in BillingInput, orderName string, total int64, deadline time.Time) (billingResult, error) {
	if in.BillingKey == "" {
		return billingResult{}, NewHTTPError(http.StatusBadRequest, "billing key required")
	}

	// 発行直後はゲートウェイ側の反映が遅れることがあるので、
	// 照会に失敗しても呼び出し元のキーを信じて先へ進む。
	info, ok := s.lookupBillingKeyInfo(ctx, in.BillingKey)
	if !ok {
		info = gw.BillingKeyInfo{BillingKey: in.BillingKey}
	}

	paymentID := in.PaymentID
	if paymentID == "" {
		paymentID = fmt.Sprintf("fund-%d-%d", userID, time.Now().UnixMilli())
	}

	// 事前登録は最適化であって正しさの条件ではない
	s.preRegister(ctx, paymentID, total)

	res, err := s.gateway.CreatePaymentSchedule(ctx, gw.ScheduleRequest{
		PaymentID:  paymentID,
		BillingKey: in.BillingKey,
		OrderName:  orderName,
		Amount:     total,
		Currency:   billingCurrency,
		TimeToPay:  deadline,
	})
	if err != nil {
		if err == gw.ErrBillingKeyNotFound {
			// 再登録を促す（闇雲なリトライをさせない）
			return billingResult{}, NewHTTPError(http.StatusBadRequest, "billing key not found, please register a billing key again")
		}
		s.log.Error("schedule creation failed",
			zap.Int64("user_id", userID),
			zap.String("payment_id", paymentID),
			zap.Error(err),
		)
		return billingResult{}, NewHTTPError(http.StatusInternalServerError, "schedule creation failed")
	}

	// キャッシュ更新なので失敗しても注文は通す
	bc := model.BillingCustomer{
		UserID:      userID,
		BillingKey:  in.BillingKey,
		ChannelKey:  info.ChannelKey,
		PGProvider:  info.PGProvider,
		IssuedAt:    info.IssuedAt,
		RawResponse: info.Raw,
	}
	if err := s.billingCustomers.UpsertByUserID(ctx, bc); err != nil {
		s.log.Warn("billing customer upsert failed", zap.Int64("user_id", userID), zap.Error(err))
	}

	return billingResult{
		BillingKey:  in.BillingKey,
		PaymentID:   paymentID,
		ScheduleID:  res.ScheduleID,
		ChannelKey:  info.ChannelKey,
		PGProvider:  info.PGProvider,
		IssuedAt:    info.IssuedAt,
		ScheduledAt: deadline,
		Response:    res.Raw,
	}, nil
}

// 失敗を飲み込んで okで返す（swallow but log を見える形にする）
func (s *BillingScheduler) lookupBillingKeyInfo(ctx context.Context, billingKey string) (gw.BillingKeyInfo, bool) {
	info, err := s.gateway.GetBillingKeyInfo(ctx, billingKey)
	if err != nil {
		s.log.Warn("billing key lookup failed, trusting caller-supplied key", zap.Error(err))
		return gw.BillingKeyInfo{}, false
	}
	return info, true
}

func (s *BillingScheduler) preRegister(ctx context.Context, paymentID string, total int64) {
	if err := s.gateway.PreRegisterPayment(ctx, paymentID, total, billingCurrency); err != nil {
		s.log.Warn("payment pre-register failed, continuing", zap.String("payment_id", paymentID), zap.Error(err))
	}
}
