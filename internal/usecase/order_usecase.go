package usecase

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"app/internal/domain/model"
	gw "app/internal/gateway"
	"app/internal/notify"
	repo "app/internal/repository"

	"go.uber.org/zap"
)

// 通知はfire-and-forget。呼び出しはブロックしないこと。
type Notifier interface {
	OrderPlaced(ns []notify.SellerOrderNotification)
	FundingGoalReached(n notify.GoalReachedNotification)
}

// イベント発行もfire-and-forget（失敗は実装側でログのみ）
type EventPublisher interface {
	OrderCreated(orderID, userID, totalAmount int64, status, settlement string)
	FundingGoalReached(productID, goalAmount, currentAmount, supporters int64)
}

type OrderUsecase struct {
	tx               repo.TransactionManager
	products         repo.ProductRepository
	cartItems        repo.CartItemRepository
	orders           repo.OrderRepository
	orderItems       repo.OrderItemRepository
	billingSchedules repo.BillingScheduleRepository
	funding          repo.FundingRepository
	gateway          gw.Client
	scheduler        *BillingScheduler
	notifier         Notifier
	events           EventPublisher
	cache            FundingCache
	log              *zap.Logger
}

type OrderUsecaseDeps struct {
	Tx               repo.TransactionManager
	Products         repo.ProductRepository
	CartItems        repo.CartItemRepository
	Orders           repo.OrderRepository
	OrderItems       repo.OrderItemRepository
	BillingSchedules repo.BillingScheduleRepository
	Funding          repo.FundingRepository
	Gateway          gw.Client
	Scheduler        *BillingScheduler
	Notifier         Notifier
	Events           EventPublisher
	Cache            FundingCache
	Log              *zap.Logger
}

func NewOrderUsecase(d OrderUsecaseDeps) *OrderUsecase {
	return &OrderUsecase{
		tx:               d.Tx,
		products:         d.Products,
		cartItems:        d.CartItems,
		orders:           d.Orders,
		orderItems:       d.OrderItems,
		billingSchedules: d.BillingSchedules,
		funding:          d.Funding,
		gateway:          d.Gateway,
		scheduler:        d.Scheduler,
		notifier:         d.Notifier,
		events:           d.Events,
		cache:            d.Cache,
		log:              d.Log,
	}
}

type PaymentInput struct {
	PaymentID string `json:"payment_id"`
	ImpUID    string `json:"imp_uid"`
}

type CheckoutInput struct {
	CartItemIDs     []int64
	Items           []DirectItemInput
	ShippingAddress string
	Phone           string
	BuyerName       string
	BuyerEmail      string
	Notes           string
	Payment         *PaymentInput
	Billing         *BillingInput
}

type CheckoutOutput struct {
	ID                 int64      `json:"id"`
	Status             string     `json:"status"`
	BillingStatus      string     `json:"billing_status,omitempty"`
	BillingScheduledAt *time.Time `json:"billing_scheduled_at,omitempty"`
	BillingPaymentID   string     `json:"billing_payment_id,omitempty"`
	BillingScheduleID  string     `json:"billing_schedule_id,omitempty"`
	TotalAmount        int64      `json:"total_amount"`
}

// Checkout は注文作成の入口。
// 解決 → 分類 → {決済検証 | 課金予約} → 永続化 → 台帳更新 → 通知 の直列パイプライン。
func (u *OrderUsecase) Checkout(ctx context.Context, userID int64, in CheckoutInput) (CheckoutOutput, error) {
	if userID <= 0 {
		return CheckoutOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if strings.TrimSpace(in.ShippingAddress) == "" {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "shipping address required")
	}
	if strings.TrimSpace(in.Phone) == "" {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "phone required")
	}

	plan, err := u.resolveItems(ctx, userID, in)
	if err != nil {
		return CheckoutOutput{}, err
	}

	var (
		paymentTx gw.Transaction
		bres      billingResult
	)

	if plan.isFund {
		var bin BillingInput
		if in.Billing != nil {
			bin = *in.Billing
		}
		// スケジュール作成に失敗したらOrder行は一切書かない
		bres, err = u.scheduler.Schedule(ctx, userID, bin, orderName(plan), plan.total, plan.deadline)
		if err != nil {
			return CheckoutOutput{}, err
		}
	} else {
		var pin PaymentInput
		if in.Payment != nil {
			pin = *in.Payment
		}
		paymentTx, err = u.verifyPayment(ctx, pin, plan.total)
		if err != nil {
			return CheckoutOutput{}, err
		}
	}

	order, err := u.persistOrder(ctx, userID, in, plan, paymentTx, bres)
	if err != nil {
		return CheckoutOutput{}, err
	}

	if plan.isFund {
		if err := u.persistBillingSchedule(ctx, order, userID, plan, bres); err != nil {
			return CheckoutOutput{}, err
		}
		// スケジュール行が確定してからカートを消費する
		// （補償キャンセル時にカートだけ消えた状態を残さない）
		u.consumeCartRows(ctx, userID, plan)
		u.applyFundingLedger(ctx, plan)
	}

	u.notifySellers(order.ID, plan, in)

	settlement := "immediate"
	if plan.isFund {
		settlement = "scheduled"
	}
	u.events.OrderCreated(order.ID, userID, plan.total, string(order.Status), settlement)

	return CheckoutOutput{
		ID:                 order.ID,
		Status:             string(order.Status),
		BillingStatus:      string(order.BillingStatus),
		BillingScheduledAt: order.BillingScheduledAt,
		BillingPaymentID:   order.BillingPaymentID,
		BillingScheduleID:  order.BillingScheduleID,
		TotalAmount:        order.TotalAmount,
	}, nil
}

// 非FUND分岐：ゲートウェイの取引を取得して支払済み・金額一致を確認する。
func (u *OrderUsecase) verifyPayment(ctx context.Context, in PaymentInput, expected int64) (gw.Transaction, error) {
	paymentID := in.PaymentID
	if paymentID == "" {
		paymentID = in.ImpUID
	}
	if paymentID == "" {
		return gw.Transaction{}, NewHTTPError(http.StatusBadRequest, "payment id required")
	}

	tx, err := u.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		if err == gw.ErrPaymentNotFound {
			return gw.Transaction{}, NewHTTPError(http.StatusNotFound, "payment not found")
		}
		u.log.Error("payment lookup failed", zap.String("payment_id", paymentID), zap.Error(err))
		return gw.Transaction{}, NewHTTPError(http.StatusInternalServerError, "payment lookup failed")
	}

	if tx.Status != "paid" {
		return gw.Transaction{}, NewHTTPError(http.StatusBadRequest, "payment not completed")
	}
	// クライアント改ざん対策：ゲートウェイ側の金額と照合する
	if tx.Amount != expected {
		return gw.Transaction{}, NewHTTPError(http.StatusBadRequest, "payment amount mismatch")
	}

	return tx, nil
}

// Order＋明細（＋非FUNDは決済記録・在庫減算・カート消費）を1トランザクションで書く。
// 在庫減算は注文と決済記録の書き込みの後。失敗すれば全て巻き戻る。
func (u *OrderUsecase) persistOrder(ctx context.Context, userID int64, in CheckoutInput, plan *checkoutPlan, paymentTx gw.Transaction, bres billingResult) (model.Order, error) {
	now := time.Now()

	order := model.Order{
		UserID:          userID,
		TotalAmount:     plan.total,
		ShippingAddress: strings.TrimSpace(in.ShippingAddress),
		Phone:           strings.TrimSpace(in.Phone),
		BuyerName:       strings.TrimSpace(in.BuyerName),
		BuyerEmail:      strings.TrimSpace(in.BuyerEmail),
		Notes:           in.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if plan.isFund {
		order.Status = model.OrderStatusPending
		order.BillingStatus = model.BillingStatusScheduled
		order.BillingKey = bres.BillingKey
		order.BillingPaymentID = bres.PaymentID
		order.BillingScheduleID = bres.ScheduleID
		scheduledAt := bres.ScheduledAt
		order.BillingScheduledAt = &scheduledAt
	} else {
		order.Status = model.OrderStatusConfirmed
		order.PaymentInfo = paymentInfoSnapshot(paymentTx)
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orderID, err := r.Orders().Create(ctx, order)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		order.ID = orderID

		items := make([]model.OrderItem, 0, len(plan.items))
		for _, li := range plan.items {
			items = append(items, model.OrderItem{
				ProductID:           li.product.ID,
				ProductNameSnapshot: li.product.Name,
				UnitPriceSnapshot:   li.unitPrice,
				Quantity:            li.quantity,
				SelectedOptions:     li.options,
				CreatedAt:           now,
			})
		}
		if err := r.OrderItems().CreateBulk(ctx, orderID, items); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if !plan.isFund {
			pr := model.PaymentRecord{
				OrderID:     orderID,
				UserID:      userID,
				ImpUID:      paymentTx.ID,
				MerchantUID: paymentTx.MerchantID,
				Amount:      paymentTx.Amount,
				Method:      paymentTx.Method,
				Status:      paymentTx.Status,
				PaymentData: paymentTx.Raw,
			}
			if _, err := r.PaymentRecords().Create(ctx, pr); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}

			for _, li := range plan.items {
				ok, err := r.Inventory().DecreaseStockIfEnough(ctx, li.product.ID, li.quantity)
				if err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
				if !ok {
					// 同時注文との競合。ここで弾けば全部ロールバックされる。
					return NewHTTPError(http.StatusBadRequest, "insufficient stock")
				}
			}
		}

		// カート行の消費（再注文防止）。FUNDはスケジュール行の確定後。
		if !plan.isFund && len(plan.cartItemIDs) > 0 {
			if err := r.CartItems().DeleteByIDs(ctx, userID, plan.cartItemIDs); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
		}

		return nil
	})
	if err != nil {
		if _, ok := AsHTTPError(err); ok {
			return model.Order{}, err
		}
		return model.Order{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return order, nil
}

// FUND分岐のみ：作成済みOrderに対応するBillingScheduleを永続化する。
// 必要なフィールドが欠けていたら注文をCANCELLED/FAILEDへ倒して致命エラーを返す
// （SCHEDULEDのままスケジュール行の無い注文を残さない）。
func (u *OrderUsecase) persistBillingSchedule(ctx context.Context, order model.Order, userID int64, plan *checkoutPlan, bres billingResult) error {
	if bres.BillingKey == "" || bres.PaymentID == "" || bres.ScheduledAt.IsZero() || bres.Response == nil {
		u.compensateBillingFailure(ctx, order.ID, "missing billing fields after order creation")
		return NewHTTPError(http.StatusInternalServerError, "inconsistent billing state")
	}

	bs := model.BillingSchedule{
		OrderID:     order.ID,
		UserID:      userID,
		BillingKey:  bres.BillingKey,
		PaymentID:   bres.PaymentID,
		ScheduleID:  bres.ScheduleID,
		ChannelKey:  bres.ChannelKey,
		Amount:      plan.total,
		Currency:    billingCurrency,
		Status:      "SCHEDULED",
		ScheduledAt: bres.ScheduledAt,
		Payload: model.JSONMap{
			"funding_increments": plan.instructions,
		},
		ResponseData: bres.Response,
	}

	if _, err := u.billingSchedules.Create(ctx, bs); err != nil {
		u.log.Error("billing schedule persistence failed", zap.Int64("order_id", order.ID), zap.Error(err))
		u.compensateBillingFailure(ctx, order.ID, "billing schedule persistence failed")
		return NewHTTPError(http.StatusInternalServerError, "inconsistent billing state")
	}

	return nil
}

// 注文が完全に確定してからの消費。失敗しても注文は成立している（ログのみ）。
func (u *OrderUsecase) consumeCartRows(ctx context.Context, userID int64, plan *checkoutPlan) {
	if len(plan.cartItemIDs) == 0 {
		return
	}
	if err := u.cartItems.DeleteByIDs(ctx, userID, plan.cartItemIDs); err != nil {
		u.log.Error("cart consumption failed",
			zap.Int64("user_id", userID),
			zap.Int64s("cart_item_ids", plan.cartItemIDs),
			zap.Error(err),
		)
	}
}

// 補償はsagaの明示ステップ。トリガーには任せない。
func (u *OrderUsecase) compensateBillingFailure(ctx context.Context, orderID int64, reason string) {
	if err := u.orders.MarkBillingFailed(ctx, orderID, reason); err != nil {
		u.log.Error("compensating cancellation failed",
			zap.Int64("order_id", orderID),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
}

// スケジュール確定時点で支援成立として台帳を加算する。
// （実課金時ではない。確定した予約課金は拘束力のある支援とみなす）
func (u *OrderUsecase) applyFundingLedger(ctx context.Context, plan *checkoutPlan) {
	for _, ins := range plan.instructions {
		snap, err := u.funding.ApplyPledge(ctx, ins.ProductID, ins.Amount)
		if err != nil {
			// スケジュール行のpayloadからリプレイできるのでここでは落とさない
			u.log.Error("funding ledger update failed",
				zap.Int64("product_id", ins.ProductID),
				zap.Int64("amount", ins.Amount),
				zap.Error(err),
			)
			continue
		}

		u.cache.Invalidate(ctx, ins.ProductID)

		// ゴール到達はエッジ検出（跨いだ1回だけ通知する）
		if snap.GoalAmount > 0 && snap.PrevAmount < snap.GoalAmount && snap.CurrentAmount >= snap.GoalAmount {
			p := plan.productByID(ins.ProductID)
			u.notifier.FundingGoalReached(notify.GoalReachedNotification{
				SellerEmail:   p.SellerEmail,
				ProductID:     p.ID,
				ProductName:   p.Name,
				GoalAmount:    snap.GoalAmount,
				CurrentAmount: snap.CurrentAmount,
				Supporters:    snap.SupporterCount,
			})
			u.events.FundingGoalReached(p.ID, snap.GoalAmount, snap.CurrentAmount, snap.SupporterCount)
		}
	}
}

// PARTNER_UP商品のみ、販売者単位にまとめて1通ずつ。
func (u *OrderUsecase) notifySellers(orderID int64, plan *checkoutPlan, in CheckoutInput) {
	bySeller := make(map[string]*notify.SellerOrderNotification)

	for _, li := range plan.items {
		if li.product.Type != model.ProductTypePartnerUp {
			continue
		}
		if li.product.SellerEmail == "" {
			continue
		}

		n, ok := bySeller[li.product.SellerEmail]
		if !ok {
			n = &notify.SellerOrderNotification{
				SellerEmail:     li.product.SellerEmail,
				OrderID:         orderID,
				BuyerName:       in.BuyerName,
				BuyerEmail:      in.BuyerEmail,
				Phone:           in.Phone,
				ShippingAddress: in.ShippingAddress,
			}
			bySeller[li.product.SellerEmail] = n
		}
		n.Items = append(n.Items, notify.OrderItemLine{
			ProductName: li.product.Name,
			Quantity:    li.quantity,
			UnitPrice:   li.unitPrice,
		})
		n.Subtotal += li.unitPrice * li.quantity
	}

	if len(bySeller) == 0 {
		return
	}

	ns := make([]notify.SellerOrderNotification, 0, len(bySeller))
	for _, n := range bySeller {
		ns = append(ns, *n)
	}
	u.notifier.OrderPlaced(ns)
}

func (p *checkoutPlan) productByID(productID int64) model.Product {
	for _, li := range p.items {
		if li.product.ID == productID {
			return li.product
		}
	}
	return model.Product{}
}

func orderName(plan *checkoutPlan) string {
	if len(plan.items) == 0 {
		return "order"
	}
	name := plan.items[0].product.Name
	if len(plan.items) > 1 {
		return fmt.Sprintf("%s 외 %d건", name, len(plan.items)-1)
	}
	return name
}

func paymentInfoSnapshot(tx gw.Transaction) model.JSONMap {
	m := model.JSONMap{
		"id":          tx.ID,
		"status":      tx.Status,
		"amount":      tx.Amount,
		"currency":    tx.Currency,
		"method":      tx.Method,
		"buyer_name":  tx.BuyerName,
		"buyer_email": tx.BuyerEmail,
		"buyer_tel":   tx.BuyerTel,
		"receipt_url": tx.ReceiptURL,
	}
	if tx.PaidAt != nil {
		m["paid_at"] = tx.PaidAt.Format(time.RFC3339)
	}
	return m
}

// ===== 注文の参照 =====

type OrderItemOutput struct {
	ProductID int64                 `json:"product_id"`
	Name      string                `json:"name"`
	Price     int64                 `json:"price"`
	Quantity  int64                 `json:"quantity"`
	Options   model.SelectedOptions `json:"options"`
}

type OrderOutput struct {
	ID                 int64             `json:"id"`
	UserID             int64             `json:"user_id"`
	Status             string            `json:"status"`
	TotalAmount        int64             `json:"total_amount"`
	BillingStatus      string            `json:"billing_status,omitempty"`
	BillingScheduledAt *time.Time        `json:"billing_scheduled_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	Items              []OrderItemOutput `json:"items"`
}

type ListOrdersOutput struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64, page int, limit int) (ListOrdersOutput, error) {
	if userID <= 0 {
		return ListOrdersOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if page <= 0 {
		return ListOrdersOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if limit <= 0 || limit > 100 {
		return ListOrdersOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	orders, total, err := u.orders.ListByUserID(ctx, userID, page, limit)
	if err != nil {
		return ListOrdersOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		items, err := u.orderItems.ListByOrderID(ctx, o.ID)
		if err != nil {
			return ListOrdersOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		outs = append(outs, toOrderOutput(o, items))
	}
	return ListOrdersOutput{Items: outs, Total: total, Page: page, Limit: limit}, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	o, err := u.orders.FindByID(ctx, orderID)
	if err == repo.ErrNotFound {
		return OrderOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if o.UserID != userID {
		//他人の注文は「存在しない扱い」にする
		return OrderOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}

	items, err := u.orderItems.ListByOrderID(ctx, orderID)
	if err != nil {
		return OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return toOrderOutput(o, items), nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
			Options:   it.SelectedOptions,
		})
	}

	return OrderOutput{
		ID:                 o.ID,
		UserID:             o.UserID,
		Status:             string(o.Status),
		TotalAmount:        o.TotalAmount,
		BillingStatus:      string(o.BillingStatus),
		BillingScheduledAt: o.BillingScheduledAt,
		CreatedAt:          o.CreatedAt,
		Items:              outItems,
	}
}
