package unit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"app/internal/domain/model"
	gw "app/internal/gateway"
	"app/internal/notify"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// =====================
// Mocks（衝突回避の命名）
// =====================

type OrdProductRepoMock struct{ mock.Mock }

func (m *OrdProductRepoMock) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	panic("not used in OrderUsecase tests")
}

func (m *OrdProductRepoMock) FindByID(ctx context.Context, id int64) (model.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

type OrdCartItemRepoMock struct{ mock.Mock }

func (m *OrdCartItemRepoMock) ListByUserID(ctx context.Context, userID int64) ([]model.CartItem, error) {
	panic("not used in OrderUsecase tests")
}

func (m *OrdCartItemRepoMock) ListByIDsForUser(ctx context.Context, userID int64, ids []int64) ([]model.CartItem, error) {
	args := m.Called(ctx, userID, ids)
	rows, _ := args.Get(0).([]model.CartItem)
	return rows, args.Error(1)
}

func (m *OrdCartItemRepoMock) Create(ctx context.Context, item model.CartItem) (int64, error) {
	panic("not used in OrderUsecase tests")
}

func (m *OrdCartItemRepoMock) UpdateQuantity(ctx context.Context, userID int64, cartItemID int64, qty int64) error {
	panic("not used in OrderUsecase tests")
}

func (m *OrdCartItemRepoMock) DeleteByID(ctx context.Context, userID int64, cartItemID int64) error {
	panic("not used in OrderUsecase tests")
}

func (m *OrdCartItemRepoMock) DeleteByIDs(ctx context.Context, userID int64, ids []int64) error {
	args := m.Called(ctx, userID, ids)
	return args.Error(0)
}

type OrdOrderRepoMock struct{ mock.Mock }

func (m *OrdOrderRepoMock) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrdOrderRepoMock) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	args := m.Called(ctx, userID, page, limit)
	rows, _ := args.Get(0).([]model.Order)
	return rows, args.Get(1).(int64), args.Error(2)
}

func (m *OrdOrderRepoMock) Create(ctx context.Context, order model.Order) (int64, error) {
	args := m.Called(ctx, order)
	return args.Get(0).(int64), args.Error(1)
}

func (m *OrdOrderRepoMock) UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	args := m.Called(ctx, orderID, status)
	return args.Error(0)
}

func (m *OrdOrderRepoMock) MarkBillingFailed(ctx context.Context, orderID int64, reason string) error {
	args := m.Called(ctx, orderID, reason)
	return args.Error(0)
}

type OrdOrderItemRepoMock struct{ mock.Mock }

func (m *OrdOrderItemRepoMock) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	args := m.Called(ctx, orderID, items)
	return args.Error(0)
}

func (m *OrdOrderItemRepoMock) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	args := m.Called(ctx, orderID)
	rows, _ := args.Get(0).([]model.OrderItem)
	return rows, args.Error(1)
}

type OrdInventoryRepoMock struct{ mock.Mock }

func (m *OrdInventoryRepoMock) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	args := m.Called(ctx, productID, qty)
	return args.Bool(0), args.Error(1)
}

func (m *OrdInventoryRepoMock) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	args := m.Called(ctx, productID, qty)
	return args.Error(0)
}

type OrdFundingRepoMock struct{ mock.Mock }

func (m *OrdFundingRepoMock) ApplyPledge(ctx context.Context, productID int64, amount int64) (repo.FundingSnapshot, error) {
	args := m.Called(ctx, productID, amount)
	snap, _ := args.Get(0).(repo.FundingSnapshot)
	return snap, args.Error(1)
}

type OrdBillingCustomerRepoMock struct{ mock.Mock }

func (m *OrdBillingCustomerRepoMock) UpsertByUserID(ctx context.Context, bc model.BillingCustomer) error {
	args := m.Called(ctx, bc)
	return args.Error(0)
}

func (m *OrdBillingCustomerRepoMock) FindByUserID(ctx context.Context, userID int64) (model.BillingCustomer, error) {
	panic("not used in OrderUsecase tests")
}

type OrdBillingScheduleRepoMock struct{ mock.Mock }

func (m *OrdBillingScheduleRepoMock) Create(ctx context.Context, bs model.BillingSchedule) (int64, error) {
	args := m.Called(ctx, bs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *OrdBillingScheduleRepoMock) FindByOrderID(ctx context.Context, orderID int64) (model.BillingSchedule, error) {
	panic("not used in OrderUsecase tests")
}

type OrdPaymentRecordRepoMock struct{ mock.Mock }

func (m *OrdPaymentRecordRepoMock) Create(ctx context.Context, pr model.PaymentRecord) (int64, error) {
	args := m.Called(ctx, pr)
	return args.Get(0).(int64), args.Error(1)
}

func (m *OrdPaymentRecordRepoMock) FindByOrderID(ctx context.Context, orderID int64) (model.PaymentRecord, error) {
	panic("not used in OrderUsecase tests")
}

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) GetPayment(ctx context.Context, paymentID string) (gw.Transaction, error) {
	args := m.Called(ctx, paymentID)
	tx, _ := args.Get(0).(gw.Transaction)
	return tx, args.Error(1)
}

func (m *GatewayMock) PreRegisterPayment(ctx context.Context, paymentID string, amount int64, currency string) error {
	args := m.Called(ctx, paymentID, amount, currency)
	return args.Error(0)
}

func (m *GatewayMock) GetBillingKeyInfo(ctx context.Context, billingKey string) (gw.BillingKeyInfo, error) {
	args := m.Called(ctx, billingKey)
	info, _ := args.Get(0).(gw.BillingKeyInfo)
	return info, args.Error(1)
}

func (m *GatewayMock) CreatePaymentSchedule(ctx context.Context, req gw.ScheduleRequest) (gw.ScheduleResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(gw.ScheduleResult)
	return res, args.Error(1)
}

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) OrderPlaced(ns []notify.SellerOrderNotification) {
	m.Called(ns)
}

func (m *NotifierMock) FundingGoalReached(n notify.GoalReachedNotification) {
	m.Called(n)
}

type EventsMock struct{ mock.Mock }

func (m *EventsMock) OrderCreated(orderID, userID, totalAmount int64, status, settlement string) {
	m.Called(orderID, userID, totalAmount, status, settlement)
}

func (m *EventsMock) FundingGoalReached(productID, goalAmount, currentAmount, supporters int64) {
	m.Called(productID, goalAmount, currentAmount, supporters)
}

// キャッシュはno-opで十分（Invalidateだけ数える）
type CacheStub struct {
	invalidated []int64
}

func (c *CacheStub) GetProgress(ctx context.Context, productID int64) (usecase.FundingProgress, bool) {
	return usecase.FundingProgress{}, false
}

func (c *CacheStub) SetProgress(ctx context.Context, productID int64, fp usecase.FundingProgress) {}

func (c *CacheStub) Invalidate(ctx context.Context, productID int64) {
	c.invalidated = append(c.invalidated, productID)
}

// TxReposは各モックをそのまま返す
type txReposStub struct {
	orders           *OrdOrderRepoMock
	orderItems       *OrdOrderItemRepoMock
	cartItems        *OrdCartItemRepoMock
	products         *OrdProductRepoMock
	inventory        *OrdInventoryRepoMock
	funding          *OrdFundingRepoMock
	billingCustomers *OrdBillingCustomerRepoMock
	billingSchedules *OrdBillingScheduleRepoMock
	paymentRecords   *OrdPaymentRecordRepoMock
}

func (s *txReposStub) Orders() repo.OrderRepository                     { return s.orders }
func (s *txReposStub) OrderItems() repo.OrderItemRepository             { return s.orderItems }
func (s *txReposStub) CartItems() repo.CartItemRepository               { return s.cartItems }
func (s *txReposStub) Products() repo.ProductRepository                 { return s.products }
func (s *txReposStub) Inventory() repo.InventoryRepository              { return s.inventory }
func (s *txReposStub) Funding() repo.FundingRepository                  { return s.funding }
func (s *txReposStub) BillingCustomers() repo.BillingCustomerRepository { return s.billingCustomers }
func (s *txReposStub) BillingSchedules() repo.BillingScheduleRepository { return s.billingSchedules }
func (s *txReposStub) PaymentRecords() repo.PaymentRecordRepository     { return s.paymentRecords }

type txManagerStub struct {
	repos *txReposStub
}

func (t *txManagerStub) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return fn(t.repos)
}

// =====================
// Fixture
// =====================

type orderFixture struct {
	products         *OrdProductRepoMock
	cartItems        *OrdCartItemRepoMock
	orders           *OrdOrderRepoMock
	orderItems       *OrdOrderItemRepoMock
	inventory        *OrdInventoryRepoMock
	funding          *OrdFundingRepoMock
	billingCustomers *OrdBillingCustomerRepoMock
	billingSchedules *OrdBillingScheduleRepoMock
	paymentRecords   *OrdPaymentRecordRepoMock
	gateway          *GatewayMock
	notifier         *NotifierMock
	events           *EventsMock
	cache            *CacheStub
	uc               *usecase.OrderUsecase
}

func newOrderFixture() *orderFixture {
	f := &orderFixture{
		products:         new(OrdProductRepoMock),
		cartItems:        new(OrdCartItemRepoMock),
		orders:           new(OrdOrderRepoMock),
		orderItems:       new(OrdOrderItemRepoMock),
		inventory:        new(OrdInventoryRepoMock),
		funding:          new(OrdFundingRepoMock),
		billingCustomers: new(OrdBillingCustomerRepoMock),
		billingSchedules: new(OrdBillingScheduleRepoMock),
		paymentRecords:   new(OrdPaymentRecordRepoMock),
		gateway:          new(GatewayMock),
		notifier:         new(NotifierMock),
		events:           new(EventsMock),
		cache:            &CacheStub{},
	}

	repos := &txReposStub{
		orders:           f.orders,
		orderItems:       f.orderItems,
		cartItems:        f.cartItems,
		products:         f.products,
		inventory:        f.inventory,
		funding:          f.funding,
		billingCustomers: f.billingCustomers,
		billingSchedules: f.billingSchedules,
		paymentRecords:   f.paymentRecords,
	}

	log := zap.NewNop()
	scheduler := usecase.NewBillingScheduler(f.gateway, f.billingCustomers, log)

	f.uc = usecase.NewOrderUsecase(usecase.OrderUsecaseDeps{
		Tx:               &txManagerStub{repos: repos},
		Products:         f.products,
		CartItems:        f.cartItems,
		Orders:           f.orders,
		OrderItems:       f.orderItems,
		BillingSchedules: f.billingSchedules,
		Funding:          f.funding,
		Gateway:          f.gateway,
		Scheduler:        scheduler,
		Notifier:         f.notifier,
		Events:           f.events,
		Cache:            f.cache,
		Log:              log,
	})
	return f
}

func assertErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, strings.Contains(err.Error(), wantSubstr),
			"error %q should contain %q", err.Error(), wantSubstr)
	}
}

func partnerUpProduct() model.Product {
	return model.Product{
		ID:          10,
		Name:        "핸드메이드 머그컵",
		Type:        model.ProductTypePartnerUp,
		Price:       10000,
		Stock:       5,
		IsActive:    true,
		SellerEmail: "seller@example.com",
		Options: model.OptionSchema{
			{Name: "색상", Values: []model.OptionValue{
				{Label: "빨강", PriceDelta: 0},
				{Label: "파랑", PriceDelta: 500},
			}},
		},
	}
}

func fundProduct(deadline time.Time) model.Product {
	d := deadline
	return model.Product{
		ID:                    20,
		Name:                  "수제 가죽 지갑 펀딩",
		Type:                  model.ProductTypeFund,
		Price:                 30000,
		IsActive:              true,
		SellerEmail:           "maker@example.com",
		FundingDeadline:       &d,
		FundingGoalAmount:     1000000,
		FundingCurrentAmount:  100000,
		FundingSupporterCount: 4,
	}
}

func baseInput() usecase.CheckoutInput {
	return usecase.CheckoutInput{
		ShippingAddress: "서울시 마포구 1-2-3",
		Phone:           "010-1234-5678",
		BuyerName:       "김철수",
		BuyerEmail:      "buyer@example.com",
	}
}

// =====================
// 非FUND（即時決済）
// =====================

func TestOrderUsecase_Checkout_PartnerUp_Confirmed(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	p := partnerUpProduct()
	f.products.On("FindByID", mock.Anything, int64(10)).Return(p, nil)

	// オプション差額込み：(10000+500)*2 = 21000
	f.gateway.On("GetPayment", mock.Anything, "pay-1").Return(gw.Transaction{
		ID:     "pay-1",
		Status: "paid",
		Amount: 21000,
		Method: "card",
	}, nil)

	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(100), nil)
	f.orderItems.On("CreateBulk", mock.Anything, int64(100), mock.Anything).Return(nil)
	f.paymentRecords.On("Create", mock.Anything, mock.Anything).Return(int64(1), nil)
	f.inventory.On("DecreaseStockIfEnough", mock.Anything, int64(10), int64(2)).Return(true, nil)
	f.notifier.On("OrderPlaced", mock.Anything).Return()
	f.events.On("OrderCreated", int64(100), int64(7), int64(21000), "CONFIRMED", "immediate").Return()

	in := baseInput()
	in.Items = []usecase.DirectItemInput{{
		ProductID: 10,
		Quantity:  2,
		Options:   []model.SelectedOption{{Name: "색상", Label: "파랑"}},
	}}
	in.Payment = &usecase.PaymentInput{PaymentID: "pay-1"}

	out, err := f.uc.Checkout(ctx, 7, in)
	assert.NoError(t, err)
	assert.Equal(t, int64(100), out.ID)
	assert.Equal(t, "CONFIRMED", out.Status)
	assert.Equal(t, int64(21000), out.TotalAmount)
	assert.Empty(t, out.BillingStatus)

	//販売者通知は1販売者=1通
	f.notifier.AssertCalled(t, "OrderPlaced", mock.MatchedBy(func(ns []notify.SellerOrderNotification) bool {
		return len(ns) == 1 && ns[0].SellerEmail == "seller@example.com" && ns[0].Subtotal == 21000
	}))
	f.events.AssertExpectations(t)
	f.inventory.AssertExpectations(t)
}

func TestOrderUsecase_Checkout_PaymentAmountMismatch(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	f.products.On("FindByID", mock.Anything, int64(10)).Return(partnerUpProduct(), nil)
	f.gateway.On("GetPayment", mock.Anything, "pay-1").Return(gw.Transaction{
		ID:     "pay-1",
		Status: "paid",
		Amount: 999, //サーバー計算額と不一致
	}, nil)

	in := baseInput()
	in.Items = []usecase.DirectItemInput{{
		ProductID: 10,
		Quantity:  1,
		Options:   []model.SelectedOption{{Name: "색상", Label: "빨강"}},
	}}
	in.Payment = &usecase.PaymentInput{PaymentID: "pay-1"}

	_, err := f.uc.Checkout(ctx, 7, in)
	assertErrContains(t, err, "payment amount mismatch")
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestOrderUsecase_Checkout_PaymentNotFound(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	f.products.On("FindByID", mock.Anything, int64(10)).Return(partnerUpProduct(), nil)
	f.gateway.On("GetPayment", mock.Anything, "missing").Return(gw.Transaction{}, gw.ErrPaymentNotFound)

	in := baseInput()
	in.Items = []usecase.DirectItemInput{{
		ProductID: 10,
		Quantity:  1,
		Options:   []model.SelectedOption{{Name: "색상", Label: "빨강"}},
	}}
	in.Payment = &usecase.PaymentInput{PaymentID: "missing"}

	_, err := f.uc.Checkout(ctx, 7, in)
	assertErrContains(t, err, "payment not found")
}

func TestOrderUsecase_Checkout_InsufficientStockInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	f.products.On("FindByID", mock.Anything, int64(10)).Return(partnerUpProduct(), nil)
	f.gateway.On("GetPayment", mock.Anything, "pay-1").Return(gw.Transaction{
		ID: "pay-1", Status: "paid", Amount: 10000,
	}, nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(100), nil)
	f.orderItems.On("CreateBulk", mock.Anything, int64(100), mock.Anything).Return(nil)
	f.paymentRecords.On("Create", mock.Anything, mock.Anything).Return(int64(1), nil)

	//条件付きUPDATEが競合で false（トランザクション全体が巻き戻る）
	f.inventory.On("DecreaseStockIfEnough", mock.Anything, int64(10), int64(1)).Return(false, nil)

	in := baseInput()
	in.Items = []usecase.DirectItemInput{{
		ProductID: 10,
		Quantity:  1,
		Options:   []model.SelectedOption{{Name: "색상", Label: "빨강"}},
	}}
	in.Payment = &usecase.PaymentInput{PaymentID: "pay-1"}

	_, err := f.uc.Checkout(ctx, 7, in)
	assertErrContains(t, err, "insufficient stock")
	f.events.AssertNotCalled(t, "OrderCreated", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// =====================
// 分類の不変条件
// =====================

func TestOrderUsecase_Checkout_MixedSettlementRejected(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	deadline := time.Now().Add(72 * time.Hour)
	f.products.On("FindByID", mock.Anything, int64(10)).Return(partnerUpProduct(), nil)
	f.products.On("FindByID", mock.Anything, int64(20)).Return(fundProduct(deadline), nil)

	in := baseInput()
	in.Items = []usecase.DirectItemInput{
		{ProductID: 10, Quantity: 1, Options: []model.SelectedOption{{Name: "색상", Label: "빨강"}}},
		{ProductID: 20, Quantity: 1},
	}

	_, err := f.uc.Checkout(ctx, 7, in)
	assertErrContains(t, err, "mixed settlement types")
	f.gateway.AssertNotCalled(t, "GetPayment", mock.Anything, mock.Anything)
	f.gateway.AssertNotCalled(t, "CreatePaymentSchedule", mock.Anything, mock.Anything)
}

func TestOrderUsecase_Checkout_FundingCampaignClosed(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	past := time.Now().Add(-time.Hour)
	f.products.On("FindByID", mock.Anything, int64(20)).Return(fundProduct(past), nil)

	in := baseInput()
	in.Items = []usecase.DirectItemInput{{ProductID: 20, Quantity: 1}}
	in.Billing = &usecase.BillingInput{BillingKey: "bk-1"}

	_, err := f.uc.Checkout(ctx, 7, in)
	assertErrContains(t, err, "funding campaign already closed")
}

func TestOrderUsecase_Checkout_ModeExclusivity(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	in := baseInput()
	//両方指定はNG
	in.CartItemIDs = []int64{1}
	in.Items = []usecase.DirectItemInput{{ProductID: 10, Quantity: 1}}

	_, err := f.uc.Checkout(ctx, 7, in)
	assertErrContains(t, err, "either cart_item_ids or items is required")
}

func TestOrderUsecase_Checkout_CartItemsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	//既に消費済みの行（再POST）は件数不一致で404
	f.cartItems.On("ListByIDsForUser", mock.Anything, int64(7), []int64{1, 2}).
		Return([]model.CartItem{{ID: 1, ProductID: 10, Quantity: 1}}, nil)

	in := baseInput()
	in.CartItemIDs = []int64{1, 2}

	_, err := f.uc.Checkout(ctx, 7, in)
	assertErrContains(t, err, "cart items not found")
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestOrderUsecase_Checkout_MultipleFundingCampaignsRejected(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	deadline := time.Now().Add(72 * time.Hour)
	f.products.On("FindByID", mock.Anything, int64(20)).Return(fundProduct(deadline), nil)

	other := fundProduct(deadline)
	other.ID = 21
	other.Name = "원두 정기배송 펀딩"
	f.products.On("FindByID", mock.Anything, int64(21)).Return(other, nil)

	in := baseInput()
	in.Items = []usecase.DirectItemInput{
		{ProductID: 20, Quantity: 1},
		{ProductID: 21, Quantity: 1},
	}
	in.Billing = &usecase.BillingInput{BillingKey: "bk-1"}

	_, err := f.uc.Checkout(ctx, 7, in)
	assertErrContains(t, err, "multiple funding campaigns")
	f.gateway.AssertNotCalled(t, "CreatePaymentSchedule", mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestOrderUsecase_Checkout_FundingDeadlineMismatchRejected(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	//解決の途中でdeadlineが書き換わったケース（行ごとに別の値が見える）
	d1 := time.Now().Add(72 * time.Hour)
	d2 := d1.Add(24 * time.Hour)
	f.products.On("FindByID", mock.Anything, int64(20)).Return(fundProduct(d1), nil).Once()
	f.products.On("FindByID", mock.Anything, int64(20)).Return(fundProduct(d2), nil).Once()

	in := baseInput()
	in.Items = []usecase.DirectItemInput{
		{ProductID: 20, Quantity: 1},
		{ProductID: 20, Quantity: 2},
	}
	in.Billing = &usecase.BillingInput{BillingKey: "bk-1"}

	_, err := f.uc.Checkout(ctx, 7, in)
	assertErrContains(t, err, "funding deadline mismatch")
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestOrderUsecase_Checkout_MissingFundingDeadlineRejected(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	p := fundProduct(time.Now())
	p.FundingDeadline = nil
	f.products.On("FindByID", mock.Anything, int64(20)).Return(p, nil)

	in := baseInput()
	in.Items = []usecase.DirectItemInput{{ProductID: 20, Quantity: 1}}
	in.Billing = &usecase.BillingInput{BillingKey: "bk-1"}

	_, err := f.uc.Checkout(ctx, 7, in)
	assertErrContains(t, err, "missing funding deadline")
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestOrderUsecase_Checkout_ZeroTotalRejected(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	f.products.On("FindByID", mock.Anything, int64(30)).Return(model.Product{
		ID:       30,
		Name:     "무료 샘플",
		Type:     model.ProductTypeGeneral,
		Price:    0,
		Stock:    10,
		IsActive: true,
	}, nil)

	in := baseInput()
	in.Items = []usecase.DirectItemInput{{ProductID: 30, Quantity: 1}}
	in.Payment = &usecase.PaymentInput{PaymentID: "pay-1"}

	_, err := f.uc.Checkout(ctx, 7, in)
	assertErrContains(t, err, "invalid order total")
	f.gateway.AssertNotCalled(t, "GetPayment", mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// =====================
// FUND（予約課金）
// =====================

func TestOrderUsecase_Checkout_Fund_Scheduled(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	deadline := time.Now().Add(72 * time.Hour).Truncate(time.Second)
	p := fundProduct(deadline)
	f.products.On("FindByID", mock.Anything, int64(20)).Return(p, nil)

	f.gateway.On("GetBillingKeyInfo", mock.Anything, "bk-1").Return(gw.BillingKeyInfo{
		BillingKey: "bk-1",
		ChannelKey: "channel-1",
		PGProvider: "tosspayments",
	}, nil)
	f.gateway.On("PreRegisterPayment", mock.Anything, mock.Anything, int64(60000), "KRW").Return(nil)
	f.gateway.On("CreatePaymentSchedule", mock.Anything, mock.MatchedBy(func(req gw.ScheduleRequest) bool {
		return req.BillingKey == "bk-1" && req.Amount == 60000 && req.TimeToPay.Equal(deadline)
	})).Return(gw.ScheduleResult{ScheduleID: "sch-1", Raw: map[string]any{"schedule": "sch-1"}}, nil)
	f.billingCustomers.On("UpsertByUserID", mock.Anything, mock.Anything).Return(nil)

	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(200), nil)
	f.orderItems.On("CreateBulk", mock.Anything, int64(200), mock.Anything).Return(nil)
	f.billingSchedules.On("Create", mock.Anything, mock.MatchedBy(func(bs model.BillingSchedule) bool {
		return bs.OrderID == 200 && bs.Amount == 60000 && bs.Status == "SCHEDULED"
	})).Return(int64(1), nil)

	//ゴール未到達（100000+60000 < 1000000）
	f.funding.On("ApplyPledge", mock.Anything, int64(20), int64(60000)).Return(repo.FundingSnapshot{
		PrevAmount:     100000,
		CurrentAmount:  160000,
		GoalAmount:     1000000,
		SupporterCount: 5,
	}, nil)

	f.events.On("OrderCreated", int64(200), int64(7), int64(60000), "PENDING", "scheduled").Return()

	in := baseInput()
	in.Items = []usecase.DirectItemInput{{ProductID: 20, Quantity: 2}}
	in.Billing = &usecase.BillingInput{BillingKey: "bk-1"}

	out, err := f.uc.Checkout(ctx, 7, in)
	assert.NoError(t, err)
	assert.Equal(t, "PENDING", out.Status)
	assert.Equal(t, "SCHEDULED", out.BillingStatus)
	assert.Equal(t, "sch-1", out.BillingScheduleID)
	if assert.NotNil(t, out.BillingScheduledAt) {
		assert.True(t, out.BillingScheduledAt.Equal(deadline))
	}

	//台帳は加算され、キャッシュは無効化される
	f.funding.AssertExpectations(t)
	assert.Equal(t, []int64{20}, f.cache.invalidated)

	//未到達なのでゴール通知は出ない
	f.notifier.AssertNotCalled(t, "FundingGoalReached", mock.Anything)
	f.events.AssertNotCalled(t, "FundingGoalReached", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	//FUNDは在庫に触れない
	f.inventory.AssertNotCalled(t, "DecreaseStockIfEnough", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderUsecase_Checkout_Fund_BillingKeyRequired(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	deadline := time.Now().Add(72 * time.Hour)
	f.products.On("FindByID", mock.Anything, int64(20)).Return(fundProduct(deadline), nil)

	in := baseInput()
	in.Items = []usecase.DirectItemInput{{ProductID: 20, Quantity: 1}}
	//Billingブロック無し

	_, err := f.uc.Checkout(ctx, 7, in)
	assertErrContains(t, err, "billing key required")
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestOrderUsecase_Checkout_Fund_BillingKeyNotFound_NoOrderRow(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	deadline := time.Now().Add(72 * time.Hour)
	f.products.On("FindByID", mock.Anything, int64(20)).Return(fundProduct(deadline), nil)

	//照会も事前登録もbest-effort（失敗しても続行）
	f.gateway.On("GetBillingKeyInfo", mock.Anything, "bk-dead").Return(gw.BillingKeyInfo{}, errors.New("lookup down"))
	f.gateway.On("PreRegisterPayment", mock.Anything, mock.Anything, int64(30000), "KRW").Return(errors.New("pre-register down"))
	f.gateway.On("CreatePaymentSchedule", mock.Anything, mock.Anything).Return(gw.ScheduleResult{}, gw.ErrBillingKeyNotFound)

	in := baseInput()
	in.Items = []usecase.DirectItemInput{{ProductID: 20, Quantity: 1}}
	in.Billing = &usecase.BillingInput{BillingKey: "bk-dead"}

	_, err := f.uc.Checkout(ctx, 7, in)
	assertErrContains(t, err, "billing key not found, please register a billing key again")

	//スケジュール作成に失敗したらOrder行は一切書かれない
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.funding.AssertNotCalled(t, "ApplyPledge", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderUsecase_Checkout_Fund_ScheduleRowFailureCompensates(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	deadline := time.Now().Add(72 * time.Hour)
	f.products.On("FindByID", mock.Anything, int64(20)).Return(fundProduct(deadline), nil)

	f.gateway.On("GetBillingKeyInfo", mock.Anything, "bk-1").Return(gw.BillingKeyInfo{BillingKey: "bk-1"}, nil)
	f.gateway.On("PreRegisterPayment", mock.Anything, mock.Anything, int64(30000), "KRW").Return(nil)
	f.gateway.On("CreatePaymentSchedule", mock.Anything, mock.Anything).
		Return(gw.ScheduleResult{ScheduleID: "sch-1", Raw: map[string]any{"ok": true}}, nil)
	f.billingCustomers.On("UpsertByUserID", mock.Anything, mock.Anything).Return(nil)

	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(300), nil)
	f.orderItems.On("CreateBulk", mock.Anything, int64(300), mock.Anything).Return(nil)

	//Order作成後にスケジュール行の書き込みが失敗 → 補償でCANCELLED/FAILEDへ
	f.billingSchedules.On("Create", mock.Anything, mock.Anything).Return(int64(0), errors.New("db down"))
	f.orders.On("MarkBillingFailed", mock.Anything, int64(300), mock.Anything).Return(nil)

	in := baseInput()
	in.Items = []usecase.DirectItemInput{{ProductID: 20, Quantity: 1}}
	in.Billing = &usecase.BillingInput{BillingKey: "bk-1"}

	_, err := f.uc.Checkout(ctx, 7, in)
	assertErrContains(t, err, "inconsistent billing state")
	f.orders.AssertCalled(t, "MarkBillingFailed", mock.Anything, int64(300), mock.Anything)
	f.funding.AssertNotCalled(t, "ApplyPledge", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderUsecase_Checkout_Fund_CartKeptWhenScheduleRowFails(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	deadline := time.Now().Add(72 * time.Hour)
	f.products.On("FindByID", mock.Anything, int64(20)).Return(fundProduct(deadline), nil)
	f.cartItems.On("ListByIDsForUser", mock.Anything, int64(7), []int64{5}).
		Return([]model.CartItem{{ID: 5, ProductID: 20, Quantity: 1}}, nil)

	f.gateway.On("GetBillingKeyInfo", mock.Anything, "bk-1").Return(gw.BillingKeyInfo{BillingKey: "bk-1"}, nil)
	f.gateway.On("PreRegisterPayment", mock.Anything, mock.Anything, int64(30000), "KRW").Return(nil)
	f.gateway.On("CreatePaymentSchedule", mock.Anything, mock.Anything).
		Return(gw.ScheduleResult{ScheduleID: "sch-1", Raw: map[string]any{"ok": true}}, nil)
	f.billingCustomers.On("UpsertByUserID", mock.Anything, mock.Anything).Return(nil)

	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(600), nil)
	f.orderItems.On("CreateBulk", mock.Anything, int64(600), mock.Anything).Return(nil)
	f.billingSchedules.On("Create", mock.Anything, mock.Anything).Return(int64(0), errors.New("db down"))
	f.orders.On("MarkBillingFailed", mock.Anything, int64(600), mock.Anything).Return(nil)

	in := baseInput()
	in.CartItemIDs = []int64{5}
	in.Billing = &usecase.BillingInput{BillingKey: "bk-1"}

	_, err := f.uc.Checkout(ctx, 7, in)
	assertErrContains(t, err, "inconsistent billing state")

	//注文が補償キャンセルされたらカート行は残る（再注文できる）
	f.cartItems.AssertNotCalled(t, "DeleteByIDs", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderUsecase_Checkout_Fund_CartConsumedAfterScheduleRow(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	deadline := time.Now().Add(72 * time.Hour)
	f.products.On("FindByID", mock.Anything, int64(20)).Return(fundProduct(deadline), nil)
	f.cartItems.On("ListByIDsForUser", mock.Anything, int64(7), []int64{5}).
		Return([]model.CartItem{{ID: 5, ProductID: 20, Quantity: 1}}, nil)

	f.gateway.On("GetBillingKeyInfo", mock.Anything, "bk-1").Return(gw.BillingKeyInfo{BillingKey: "bk-1"}, nil)
	f.gateway.On("PreRegisterPayment", mock.Anything, mock.Anything, int64(30000), "KRW").Return(nil)
	f.gateway.On("CreatePaymentSchedule", mock.Anything, mock.Anything).
		Return(gw.ScheduleResult{ScheduleID: "sch-1", Raw: map[string]any{"ok": true}}, nil)
	f.billingCustomers.On("UpsertByUserID", mock.Anything, mock.Anything).Return(nil)

	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(700), nil)
	f.orderItems.On("CreateBulk", mock.Anything, int64(700), mock.Anything).Return(nil)
	f.billingSchedules.On("Create", mock.Anything, mock.Anything).Return(int64(1), nil)
	f.cartItems.On("DeleteByIDs", mock.Anything, int64(7), []int64{5}).Return(nil)

	f.funding.On("ApplyPledge", mock.Anything, int64(20), int64(30000)).Return(repo.FundingSnapshot{
		PrevAmount:     100000,
		CurrentAmount:  130000,
		GoalAmount:     1000000,
		SupporterCount: 5,
	}, nil)
	f.events.On("OrderCreated", int64(700), int64(7), int64(30000), "PENDING", "scheduled").Return()

	in := baseInput()
	in.CartItemIDs = []int64{5}
	in.Billing = &usecase.BillingInput{BillingKey: "bk-1"}

	_, err := f.uc.Checkout(ctx, 7, in)
	assert.NoError(t, err)
	f.cartItems.AssertCalled(t, "DeleteByIDs", mock.Anything, int64(7), []int64{5})
}

func TestOrderUsecase_Checkout_Fund_GoalReachedFiresOnceOnCrossing(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	deadline := time.Now().Add(72 * time.Hour)
	p := fundProduct(deadline)
	f.products.On("FindByID", mock.Anything, int64(20)).Return(p, nil)

	f.gateway.On("GetBillingKeyInfo", mock.Anything, "bk-1").Return(gw.BillingKeyInfo{BillingKey: "bk-1"}, nil)
	f.gateway.On("PreRegisterPayment", mock.Anything, mock.Anything, int64(30000), "KRW").Return(nil)
	f.gateway.On("CreatePaymentSchedule", mock.Anything, mock.Anything).
		Return(gw.ScheduleResult{ScheduleID: "sch-1", Raw: map[string]any{"ok": true}}, nil)
	f.billingCustomers.On("UpsertByUserID", mock.Anything, mock.Anything).Return(nil)

	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(400), nil)
	f.orderItems.On("CreateBulk", mock.Anything, int64(400), mock.Anything).Return(nil)
	f.billingSchedules.On("Create", mock.Anything, mock.Anything).Return(int64(1), nil)

	//この支援でゴールを跨ぐ（prev < goal <= current）
	f.funding.On("ApplyPledge", mock.Anything, int64(20), int64(30000)).Return(repo.FundingSnapshot{
		PrevAmount:     980000,
		CurrentAmount:  1010000,
		GoalAmount:     1000000,
		SupporterCount: 40,
	}, nil)

	f.notifier.On("FundingGoalReached", mock.MatchedBy(func(n notify.GoalReachedNotification) bool {
		return n.ProductID == 20 && n.GoalAmount == 1000000 && n.CurrentAmount == 1010000
	})).Return()
	f.events.On("FundingGoalReached", int64(20), int64(1000000), int64(1010000), int64(40)).Return()
	f.events.On("OrderCreated", int64(400), int64(7), int64(30000), "PENDING", "scheduled").Return()

	in := baseInput()
	in.Items = []usecase.DirectItemInput{{ProductID: 20, Quantity: 1}}
	in.Billing = &usecase.BillingInput{BillingKey: "bk-1"}

	_, err := f.uc.Checkout(ctx, 7, in)
	assert.NoError(t, err)
	f.notifier.AssertNumberOfCalls(t, "FundingGoalReached", 1)
	f.events.AssertExpectations(t)
}

func TestOrderUsecase_Checkout_Fund_AlreadyPastGoalDoesNotRefire(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	deadline := time.Now().Add(72 * time.Hour)
	f.products.On("FindByID", mock.Anything, int64(20)).Return(fundProduct(deadline), nil)

	f.gateway.On("GetBillingKeyInfo", mock.Anything, "bk-1").Return(gw.BillingKeyInfo{BillingKey: "bk-1"}, nil)
	f.gateway.On("PreRegisterPayment", mock.Anything, mock.Anything, int64(30000), "KRW").Return(nil)
	f.gateway.On("CreatePaymentSchedule", mock.Anything, mock.Anything).
		Return(gw.ScheduleResult{ScheduleID: "sch-2", Raw: map[string]any{"ok": true}}, nil)
	f.billingCustomers.On("UpsertByUserID", mock.Anything, mock.Anything).Return(nil)

	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(500), nil)
	f.orderItems.On("CreateBulk", mock.Anything, int64(500), mock.Anything).Return(nil)
	f.billingSchedules.On("Create", mock.Anything, mock.Anything).Return(int64(2), nil)

	//既に到達済み（prev >= goal）なので再通知しない
	f.funding.On("ApplyPledge", mock.Anything, int64(20), int64(30000)).Return(repo.FundingSnapshot{
		PrevAmount:     1010000,
		CurrentAmount:  1040000,
		GoalAmount:     1000000,
		SupporterCount: 41,
	}, nil)
	f.events.On("OrderCreated", int64(500), int64(7), int64(30000), "PENDING", "scheduled").Return()

	in := baseInput()
	in.Items = []usecase.DirectItemInput{{ProductID: 20, Quantity: 1}}
	in.Billing = &usecase.BillingInput{BillingKey: "bk-1"}

	_, err := f.uc.Checkout(ctx, 7, in)
	assert.NoError(t, err)
	f.notifier.AssertNotCalled(t, "FundingGoalReached", mock.Anything)
	f.events.AssertNotCalled(t, "FundingGoalReached", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// =====================
// 参照系
// =====================

func TestOrderUsecase_ListMyOrders_PassesPagination(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	f.orders.On("ListByUserID", mock.Anything, int64(7), 2, 10).
		Return([]model.Order{{ID: 9, UserID: 7, Status: model.OrderStatusConfirmed}}, int64(25), nil)
	f.orderItems.On("ListByOrderID", mock.Anything, int64(9)).Return([]model.OrderItem{}, nil)

	out, err := f.uc.ListMyOrders(ctx, 7, 2, 10)
	assert.NoError(t, err)
	assert.Equal(t, int64(25), out.Total)
	assert.Equal(t, 2, out.Page)
	assert.Equal(t, 10, out.Limit)
	assert.Len(t, out.Items, 1)
	f.orders.AssertExpectations(t)
}

func TestOrderUsecase_ListMyOrders_InvalidPage(t *testing.T) {
	f := newOrderFixture()

	_, err := f.uc.ListMyOrders(context.Background(), 7, 0, 20)
	assertErrContains(t, err, "invalid page")
}

func TestOrderUsecase_GetMyOrderDetail_OtherUsersOrderIsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	f.orders.On("FindByID", mock.Anything, int64(9)).Return(model.Order{ID: 9, UserID: 999}, nil)

	_, err := f.uc.GetMyOrderDetail(ctx, 7, 9)
	assertErrContains(t, err, "not found")
}

func TestOrderUsecase_Checkout_RequiresShippingAddress(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	in := baseInput()
	in.ShippingAddress = "   "
	in.Items = []usecase.DirectItemInput{{ProductID: 10, Quantity: 1}}

	_, err := f.uc.Checkout(ctx, 7, in)
	assertErrContains(t, err, "shipping address required")
}
