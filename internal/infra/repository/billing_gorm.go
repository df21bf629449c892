package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BillingCustomerGormRepository struct {
	db *gorm.DB
}

func NewBillingCustomerGormRepository(db *gorm.DB) *BillingCustomerGormRepository {
	return &BillingCustomerGormRepository{db: db}
}

// user_idキーのupsert。同時実行はlast-writer-winsで良い（キャッシュなので）。
func (r *BillingCustomerGormRepository) UpsertByUserID(ctx context.Context, bc model.BillingCustomer) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"billing_key", "channel_key", "pg_provider", "issued_at", "raw_response", "updated_at",
		}),
	}).Create(&bc).Error
}

func (r *BillingCustomerGormRepository) FindByUserID(ctx context.Context, userID int64) (model.BillingCustomer, error) {
	var bc model.BillingCustomer
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&bc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.BillingCustomer{}, repo.ErrNotFound
	}
	if err != nil {
		return model.BillingCustomer{}, err
	}
	return bc, nil
}

type BillingScheduleGormRepository struct {
	db *gorm.DB
}

func NewBillingScheduleGormRepository(db *gorm.DB) *BillingScheduleGormRepository {
	return &BillingScheduleGormRepository{db: db}
}

func (r *BillingScheduleGormRepository) Create(ctx context.Context, bs model.BillingSchedule) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&bs).Error; err != nil {
		return 0, err
	}
	return bs.ID, nil
}

func (r *BillingScheduleGormRepository) FindByOrderID(ctx context.Context, orderID int64) (model.BillingSchedule, error) {
	var bs model.BillingSchedule
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&bs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.BillingSchedule{}, repo.ErrNotFound
	}
	if err != nil {
		return model.BillingSchedule{}, err
	}
	return bs, nil
}
