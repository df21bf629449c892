package repository

import (
	"context"

	repo "app/internal/repository"

	"gorm.io/gorm"
)

type FundingGormRepository struct {
	db *gorm.DB
}

func NewFundingGormRepository(db *gorm.DB) *FundingGormRepository {
	return &FundingGormRepository{db: db}
}

// 支援額・支援者数の加算は1回のUPDATEで行い、RETURNINGで加算後の値を受け取る。
// PrevAmountは引き算で復元できるので、同時支援でもエッジ検出が落ちない。
func (r *FundingGormRepository) ApplyPledge(ctx context.Context, productID int64, amount int64) (repo.FundingSnapshot, error) {
	var row struct {
		FundingCurrentAmount  int64
		FundingGoalAmount     int64
		FundingSupporterCount int64
	}

	res := r.db.WithContext(ctx).Raw(`
		UPDATE products
		SET funding_current_amount = funding_current_amount + ?,
		    funding_supporter_count = funding_supporter_count + 1,
		    updated_at = NOW()
		WHERE id = ? AND deleted_at IS NULL
		RETURNING funding_current_amount, funding_goal_amount, funding_supporter_count`,
		amount, productID,
	).Scan(&row)

	if res.Error != nil {
		return repo.FundingSnapshot{}, res.Error
	}
	if res.RowsAffected == 0 {
		return repo.FundingSnapshot{}, repo.ErrNotFound
	}

	return repo.FundingSnapshot{
		PrevAmount:     row.FundingCurrentAmount - amount,
		CurrentAmount:  row.FundingCurrentAmount,
		GoalAmount:     row.FundingGoalAmount,
		SupporterCount: row.FundingSupporterCount,
	}, nil
}
