package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type PaymentRecordGormRepository struct {
	db *gorm.DB
}

func NewPaymentRecordGormRepository(db *gorm.DB) *PaymentRecordGormRepository {
	return &PaymentRecordGormRepository{db: db}
}

func (r *PaymentRecordGormRepository) Create(ctx context.Context, pr model.PaymentRecord) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&pr).Error; err != nil {
		return 0, err
	}
	return pr.ID, nil
}

func (r *PaymentRecordGormRepository) FindByOrderID(ctx context.Context, orderID int64) (model.PaymentRecord, error) {
	var pr model.PaymentRecord
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&pr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.PaymentRecord{}, repo.ErrNotFound
	}
	if err != nil {
		return model.PaymentRecord{}, err
	}
	return pr, nil
}
