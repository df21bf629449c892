package repository

import (
	"context"

	"app/internal/domain/model"
)

type BillingCustomerRepository interface {
	// userIDキーの冪等upsert（last-writer-winsで良い。キャッシュなので）
	UpsertByUserID(ctx context.Context, bc model.BillingCustomer) error
	FindByUserID(ctx context.Context, userID int64) (model.BillingCustomer, error)
}

type BillingScheduleRepository interface {
	Create(ctx context.Context, bs model.BillingSchedule) (int64, error)
	FindByOrderID(ctx context.Context, orderID int64) (model.BillingSchedule, error)
}
