package repository

import (
	"context"

	"app/internal/domain/model"
)

type PaymentRecordRepository interface {
	Create(ctx context.Context, pr model.PaymentRecord) (int64, error)
	FindByOrderID(ctx context.Context, orderID int64) (model.PaymentRecord, error)
}
