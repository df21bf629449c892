package repository

import (
	"context"

	repo "app/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	orders           repo.OrderRepository
	orderItems       repo.OrderItemRepository
	cartItems        repo.CartItemRepository
	products         repo.ProductRepository
	inventory        repo.InventoryRepository
	funding          repo.FundingRepository
	billingCustomers repo.BillingCustomerRepository
	billingSchedules repo.BillingScheduleRepository
	paymentRecords   repo.PaymentRecordRepository
}

func (r *txReposGorm) Orders() repo.OrderRepository                     { return r.orders }
func (r *txReposGorm) OrderItems() repo.OrderItemRepository             { return r.orderItems }
func (r *txReposGorm) CartItems() repo.CartItemRepository               { return r.cartItems }
func (r *txReposGorm) Products() repo.ProductRepository                 { return r.products }
func (r *txReposGorm) Inventory() repo.InventoryRepository              { return r.inventory }
func (r *txReposGorm) Funding() repo.FundingRepository                  { return r.funding }
func (r *txReposGorm) BillingCustomers() repo.BillingCustomerRepository { return r.billingCustomers }
func (r *txReposGorm) BillingSchedules() repo.BillingScheduleRepository { return r.billingSchedules }
func (r *txReposGorm) PaymentRecords() repo.PaymentRecordRepository     { return r.paymentRecords }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		r := &txReposGorm{
			orders:           NewOrderGormRepository(tx),
			orderItems:       NewOrderItemGormRepository(tx),
			cartItems:        NewCartItemGormRepository(tx),
			products:         NewProductGormRepository(tx),
			inventory:        NewInventoryGormRepository(tx),
			funding:          NewFundingGormRepository(tx),
			billingCustomers: NewBillingCustomerGormRepository(tx),
			billingSchedules: NewBillingScheduleGormRepository(tx),
			paymentRecords:   NewPaymentRecordGormRepository(tx),
		}
		return fn(r)
	})
}
