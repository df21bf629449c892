package usecase

import (
	"context"
	"net/http"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

// CartUsecase は /cart の業務ロジック。
// 行はユーザー直下で、同一商品でもオプションが違えば別行になる。
type CartUsecase struct {
	cartItemRepo repo.CartItemRepository
	productRepo  repo.ProductRepository
}

func NewCartUsecase(cartItemRepo repo.CartItemRepository, productRepo repo.ProductRepository) *CartUsecase {
	return &CartUsecase{cartItemRepo: cartItemRepo, productRepo: productRepo}
}

type CartItemResponse struct {
	ID        int64                 `json:"id"`
	ProductID int64                 `json:"product_id"`
	Name      string                `json:"name"`
	Price     int64                 `json:"price"`
	Quantity  int64                 `json:"quantity"`
	Options   model.SelectedOptions `json:"options"`
}

type CartResponse struct {
	Items []CartItemResponse `json:"items"`
	Total int64              `json:"total"`
}

type AddCartInput struct {
	ProductID int64
	Quantity  int64
	Options   []model.SelectedOption
}

func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return u.buildCartResponse(ctx, userID)
}

// AddToCart はオプションを正規化して、追加時点の単価をスナップショットする。
func (u *CartUsecase) AddToCart(ctx context.Context, userID int64, in AddCartInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.ProductID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	// 商品チェック（公開のみ）
	p, err := u.productRepo.FindByID(ctx, in.ProductID)
	if err == repo.ErrNotFound {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !p.IsActive {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid")
	}

	opts, unitPrice, err := ResolveOptions(p, in.Options)
	if err != nil {
		return CartResponse{}, err
	}

	// FUNDは在庫制限なし
	if !p.IsFund() && in.Quantity > p.Stock {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "stock exceeded")
	}

	_, err = u.cartItemRepo.Create(ctx, model.CartItem{
		UserID:            userID,
		ProductID:         in.ProductID,
		Quantity:          in.Quantity,
		UnitPriceSnapshot: unitPrice,
		SelectedOptions:   opts,
	})
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.buildCartResponse(ctx, userID)
}

func (u *CartUsecase) UpdateQuantity(ctx context.Context, userID int64, cartItemID int64, qty int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if cartItemID <= 0 || qty < 1 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid")
	}

	err := u.cartItemRepo.UpdateQuantity(ctx, userID, cartItemID, qty)
	if err == repo.ErrNotFound {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.buildCartResponse(ctx, userID)
}

func (u *CartUsecase) RemoveFromCart(ctx context.Context, userID int64, cartItemID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if cartItemID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	err := u.cartItemRepo.DeleteByID(ctx, userID, cartItemID)
	if err == repo.ErrNotFound {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.buildCartResponse(ctx, userID)
}

func (u *CartUsecase) buildCartResponse(ctx context.Context, userID int64) (CartResponse, error) {
	rows, err := u.cartItemRepo.ListByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	resp := CartResponse{Items: make([]CartItemResponse, 0, len(rows))}
	for _, r := range rows {
		name := ""
		if p, err := u.productRepo.FindByID(ctx, r.ProductID); err == nil {
			name = p.Name
		}
		resp.Items = append(resp.Items, CartItemResponse{
			ID:        r.ID,
			ProductID: r.ProductID,
			Name:      name,
			Price:     r.UnitPriceSnapshot,
			Quantity:  r.Quantity,
			Options:   r.SelectedOptions,
		})
		resp.Total += r.UnitPriceSnapshot * r.Quantity
	}
	return resp, nil
}
