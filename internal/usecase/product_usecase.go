package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"go.uber.org/zap"
)

type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// ファンディング進捗。キャッシュにもこの形で入る。
type FundingProgress struct {
	ProductID      int64      `json:"product_id"`
	GoalAmount     int64      `json:"goal_amount"`
	CurrentAmount  int64      `json:"current_amount"`
	SupporterCount int64      `json:"supporter_count"`
	AchievedRate   float64    `json:"achieved_rate"`
	Deadline       *time.Time `json:"deadline,omitempty"`
}

// 進捗のリードキャッシュ。実装はredis（失敗は実装側で飲み込む）。
type FundingCache interface {
	GetProgress(ctx context.Context, productID int64) (FundingProgress, bool)
	SetProgress(ctx context.Context, productID int64, fp FundingProgress)
	Invalidate(ctx context.Context, productID int64)
}

type ProductUsecase struct {
	productRepo repo.ProductRepository
	cache       FundingCache
	log         *zap.Logger
}

func NewProductUsecase(productRepo repo.ProductRepository, cache FundingCache, log *zap.Logger) *ProductUsecase {
	return &ProductUsecase{productRepo: productRepo, cache: cache, log: log}
}

type ListProductsInput struct {
	Page  int
	Limit int
	Q     string
	Type  string
	Sort  string
}

type ListProductsOutput struct {
	Items []model.Product `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

func (u *ProductUsecase) ListPublicProducts(ctx context.Context, in ListProductsInput) (ListProductsOutput, error) {
	if in.Page <= 0 {
		return ListProductsOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if in.Limit <= 0 || in.Limit > 100 {
		return ListProductsOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	items, total, err := u.productRepo.ListPublic(ctx, repo.ProductListQuery{
		Page:  in.Page,
		Limit: in.Limit,
		Q:     in.Q,
		Type:  in.Type,
		Sort:  in.Sort,
	})
	if err != nil {
		return ListProductsOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return ListProductsOutput{Items: items, Total: total, Page: in.Page, Limit: in.Limit}, nil
}

func (u *ProductUsecase) GetProductDetail(ctx context.Context, id int64) (model.Product, error) {
	if id <= 0 {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	p, err := u.productRepo.FindByID(ctx, id)
	if err == repo.ErrNotFound {
		return model.Product{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.Product{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !p.IsActive {
		return model.Product{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	return p, nil
}

// GetFundingProgress はFUND商品の進捗を返す（キャッシュ読み通し）。
func (u *ProductUsecase) GetFundingProgress(ctx context.Context, productID int64) (FundingProgress, error) {
	if productID <= 0 {
		return FundingProgress{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if fp, ok := u.cache.GetProgress(ctx, productID); ok {
		return fp, nil
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if err == repo.ErrNotFound {
		return FundingProgress{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return FundingProgress{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !p.IsFund() {
		return FundingProgress{}, NewHTTPError(http.StatusBadRequest, "not a funding product")
	}

	fp := FundingProgress{
		ProductID:      p.ID,
		GoalAmount:     p.FundingGoalAmount,
		CurrentAmount:  p.FundingCurrentAmount,
		SupporterCount: p.FundingSupporterCount,
		Deadline:       p.FundingDeadline,
	}
	if p.FundingGoalAmount > 0 {
		rate := float64(p.FundingCurrentAmount) / float64(p.FundingGoalAmount) * 100
		fp.AchievedRate = math.Round(rate*10) / 10
	}

	u.cache.SetProgress(ctx, productID, fp)
	return fp, nil
}
