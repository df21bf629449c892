package repository

import (
	"context"

	"app/internal/domain/model"
)

type CartItemRepository interface {
	ListByUserID(ctx context.Context, userID int64) ([]model.CartItem, error)

	// 指定IDのうち本人所有の行だけを返す（件数不一致の検出は呼び出し側）
	ListByIDsForUser(ctx context.Context, userID int64, ids []int64) ([]model.CartItem, error)

	Create(ctx context.Context, item model.CartItem) (int64, error)
	UpdateQuantity(ctx context.Context, userID int64, cartItemID int64, qty int64) error
	DeleteByID(ctx context.Context, userID int64, cartItemID int64) error

	// 注文成功時の一括消費
	DeleteByIDs(ctx context.Context, userID int64, ids []int64) error
}
