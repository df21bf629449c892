package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	gw "app/internal/gateway"

	"go.uber.org/zap"
)

// PortOne V2系のREST APIクライアント。
// タイムアウトはステップごとの失敗モードとして扱う（呼び出し側の方針）。
type PortOneClient struct {
	baseURL    string
	apiSecret  string
	channelKey string
	httpClient *http.Client
	log        *zap.Logger
}

func NewPortOneClient(baseURL, apiSecret, channelKey string, log *zap.Logger) *PortOneClient {
	return &PortOneClient{
		baseURL:    baseURL,
		apiSecret:  apiSecret,
		channelKey: channelKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

type apiError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type paymentResponse struct {
	ID          string `json:"id"`
	MerchantID  string `json:"merchantId"`
	Status      string `json:"status"`
	OrderName   string `json:"orderName"`
	Currency    string `json:"currency"`
	PaidAt      string `json:"paidAt"`
	ReceiptURL  string `json:"receiptUrl"`
	PayMethod   string `json:"method"`
	Amount      struct {
		Total int64 `json:"total"`
	} `json:"amount"`
	Customer struct {
		Name        string `json:"name"`
		Email       string `json:"email"`
		PhoneNumber string `json:"phoneNumber"`
	} `json:"customer"`
}

func (c *PortOneClient) GetPayment(ctx context.Context, paymentID string) (gw.Transaction, error) {
	var resp paymentResponse
	raw, err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil, &resp)
	if err != nil {
		if isNotFound(err) {
			return gw.Transaction{}, gw.ErrPaymentNotFound
		}
		return gw.Transaction{}, err
	}

	tx := gw.Transaction{
		ID:         resp.ID,
		MerchantID: resp.MerchantID,
		Status:     normalizeStatus(resp.Status),
		Amount:     resp.Amount.Total,
		Currency:   resp.Currency,
		Method:     resp.PayMethod,
		BuyerName:  resp.Customer.Name,
		BuyerEmail: resp.Customer.Email,
		BuyerTel:   resp.Customer.PhoneNumber,
		ReceiptURL: resp.ReceiptURL,
		Raw:        raw,
	}
	if t, err := time.Parse(time.RFC3339, resp.PaidAt); err == nil {
		tx.PaidAt = &t
	}
	return tx, nil
}

// 事前登録。失敗してもスケジュール作成は通るので呼び出し側はbest-effortで扱う。
func (c *PortOneClient) PreRegisterPayment(ctx context.Context, paymentID string, amount int64, currency string) error {
	body := map[string]any{
		"totalAmount": amount,
		"currency":    currency,
	}
	_, err := c.do(ctx, http.MethodPost, "/payments/"+url.PathEscape(paymentID)+"/pre-register", body, nil)
	return err
}

func (c *PortOneClient) GetBillingKeyInfo(ctx context.Context, billingKey string) (gw.BillingKeyInfo, error) {
	var resp struct {
		BillingKey string `json:"billingKey"`
		ChannelKey string `json:"channelKey"`
		IssuedAt   string `json:"issuedAt"`
		Channel    struct {
			PGProvider string `json:"pgProvider"`
		} `json:"channel"`
	}
	raw, err := c.do(ctx, http.MethodGet, "/billing-keys/"+url.PathEscape(billingKey), nil, &resp)
	if err != nil {
		if isNotFound(err) {
			return gw.BillingKeyInfo{}, gw.ErrBillingKeyNotFound
		}
		return gw.BillingKeyInfo{}, err
	}

	info := gw.BillingKeyInfo{
		BillingKey: resp.BillingKey,
		ChannelKey: resp.ChannelKey,
		PGProvider: resp.Channel.PGProvider,
		Raw:        raw,
	}
	if t, err := time.Parse(time.RFC3339, resp.IssuedAt); err == nil {
		info.IssuedAt = &t
	}
	return info, nil
}

func (c *PortOneClient) CreatePaymentSchedule(ctx context.Context, req gw.ScheduleRequest) (gw.ScheduleResult, error) {
	body := map[string]any{
		"payment": map[string]any{
			"billingKey": req.BillingKey,
			"orderName":  req.OrderName,
			"amount": map[string]any{
				"total": req.Amount,
			},
			"currency":   req.Currency,
			"channelKey": c.channelKey,
		},
		"timeToPay": req.TimeToPay.UTC().Format(time.RFC3339),
	}

	var resp struct {
		Schedule struct {
			ID string `json:"id"`
		} `json:"schedule"`
	}
	raw, err := c.do(ctx, http.MethodPost, "/payments/"+url.PathEscape(req.PaymentID)+"/schedule", body, &resp)
	if err != nil {
		if isBillingKeyNotFound(err) {
			return gw.ScheduleResult{}, gw.ErrBillingKeyNotFound
		}
		return gw.ScheduleResult{}, err
	}

	return gw.ScheduleResult{ScheduleID: resp.Schedule.ID, Raw: raw}, nil
}

// 共通リクエスト処理。成功時は生ボディのmapも返す（スナップショット保存用）。
func (c *PortOneClient) do(ctx context.Context, method, path string, body any, out any) (map[string]any, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "PortOne "+c.apiSecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("portone %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	if res.StatusCode >= 400 {
		var apiErr apiError
		_ = json.Unmarshal(data, &apiErr)
		c.log.Warn("portone error response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", res.StatusCode),
			zap.String("code", apiErr.Code),
		)
		return nil, &StatusError{Status: res.StatusCode, Code: apiErr.Code, Message: apiErr.Message}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("portone decode %s: %w", path, err)
		}
	}

	var raw map[string]any
	_ = json.Unmarshal(data, &raw)
	return raw, nil
}

type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("portone %d %s: %s", e.Status, e.Code, e.Message)
}

func isNotFound(err error) bool {
	se, ok := err.(*StatusError)
	return ok && (se.Status == http.StatusNotFound || se.Code == "PAYMENT_NOT_FOUND" || se.Code == "BILLING_KEY_NOT_FOUND")
}

func isBillingKeyNotFound(err error) bool {
	se, ok := err.(*StatusError)
	return ok && (se.Code == "BILLING_KEY_NOT_FOUND" || se.Status == http.StatusNotFound)
}

// "PAID" / "paid" の揺れを吸収
func normalizeStatus(s string) string {
	switch s {
	case "PAID", "paid":
		return "paid"
	case "FAILED", "failed":
		return "failed"
	case "CANCELLED", "cancelled":
		return "cancelled"
	default:
		return s
	}
}
