package usecase

import (
	"context"
	"net/http"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

type DirectItemInput struct {
	ProductID int64                  `json:"product_id"`
	Quantity  int64                  `json:"quantity"`
	Options   []model.SelectedOption `json:"options"`
}

// 解決済みの明細。リクエストごとに導出し、キャッシュしない。
type lineItem struct {
	product   model.Product
	quantity  int64
	unitPrice int64
	options   model.SelectedOptions
}

// 実課金時にリプレイするための加算指示（BillingSchedule.payloadにも入る）
type fundingInstruction struct {
	ProductID          int64 `json:"product_id"`
	Amount             int64 `json:"amount"`
	SupporterIncrement int64 `json:"supporter_increment"`
}

// 解決＋分類の結果。ここを通らずに永続化へ進むルートは無い。
type checkoutPlan struct {
	items        []lineItem
	cartItemIDs  []int64
	total        int64
	isFund       bool
	deadline     time.Time
	instructions []fundingInstruction
}

// resolveItems はカート行または直接指定をまとめて明細へ解決し、
// 解決しながらFUND/非FUNDに分類する（二度走査しない）。
func (u *OrderUsecase) resolveItems(ctx context.Context, userID int64, in CheckoutInput) (*checkoutPlan, error) {
	cartMode := len(in.CartItemIDs) > 0
	directMode := len(in.Items) > 0
	if cartMode == directMode {
		return nil, NewHTTPError(http.StatusBadRequest, "either cart_item_ids or items is required")
	}

	type rawItem struct {
		productID int64
		quantity  int64
		options   []model.SelectedOption
	}

	var raws []rawItem

	if cartMode {
		rows, err := u.cartItems.ListByIDsForUser(ctx, userID, in.CartItemIDs)
		if err != nil {
			return nil, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		// 部分一致は黙って間引かず拒否する（意図より少ない注文を防ぐ）
		if len(rows) != len(uniqueIDs(in.CartItemIDs)) {
			return nil, NewHTTPError(http.StatusNotFound, "cart items not found")
		}
		for _, r := range rows {
			raws = append(raws, rawItem{productID: r.ProductID, quantity: r.Quantity, options: r.SelectedOptions})
		}
	} else {
		for _, it := range in.Items {
			raws = append(raws, rawItem{productID: it.ProductID, quantity: it.Quantity, options: it.Options})
		}
	}

	plan := &checkoutPlan{}
	if cartMode {
		plan.cartItemIDs = in.CartItemIDs
	}

	var fundItems, normalItems []lineItem
	fundAmounts := make(map[int64]int64)

	for _, r := range raws {
		if r.productID <= 0 {
			return nil, NewHTTPError(http.StatusBadRequest, "invalid product_id")
		}
		if r.quantity < 1 {
			return nil, NewHTTPError(http.StatusBadRequest, "invalid quantity")
		}

		p, err := u.products.FindByID(ctx, r.productID)
		if err == repo.ErrNotFound {
			return nil, NewHTTPError(http.StatusNotFound, "product not found")
		}
		if err != nil {
			return nil, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !p.IsActive {
			return nil, NewHTTPError(http.StatusBadRequest, "product not active")
		}

		// FUNDは在庫を見ない
		if !p.IsFund() && p.Stock < r.quantity {
			return nil, NewHTTPError(http.StatusBadRequest, "insufficient stock")
		}

		opts, unitPrice, err := ResolveOptions(p, r.options)
		if err != nil {
			return nil, err
		}

		li := lineItem{product: p, quantity: r.quantity, unitPrice: unitPrice, options: opts}
		lineTotal := unitPrice * r.quantity
		plan.total += lineTotal

		if p.IsFund() {
			fundItems = append(fundItems, li)
			fundAmounts[p.ID] += lineTotal
		} else {
			normalItems = append(normalItems, li)
		}
	}

	// ===== 分類の不変条件（永続化より前に全部確認する） =====

	if len(fundItems) > 0 && len(normalItems) > 0 {
		return nil, NewHTTPError(http.StatusBadRequest, "mixed settlement types")
	}

	if len(fundItems) > 0 {
		if len(fundAmounts) > 1 {
			return nil, NewHTTPError(http.StatusBadRequest, "multiple funding campaigns")
		}

		// 1キャンペーンなのでdeadlineは1つに定まる
		var deadline *time.Time
		for _, li := range fundItems {
			d := li.product.FundingDeadline
			if d == nil {
				return nil, NewHTTPError(http.StatusBadRequest, "missing funding deadline")
			}
			if deadline == nil {
				deadline = d
			} else if !deadline.Equal(*d) {
				return nil, NewHTTPError(http.StatusBadRequest, "funding deadline mismatch")
			}
		}
		if !deadline.After(time.Now()) {
			return nil, NewHTTPError(http.StatusBadRequest, "funding campaign already closed")
		}

		plan.isFund = true
		plan.deadline = *deadline
		for pid, amount := range fundAmounts {
			plan.instructions = append(plan.instructions, fundingInstruction{
				ProductID:          pid,
				Amount:             amount,
				SupporterIncrement: 1,
			})
		}
	}

	if plan.total <= 0 {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid order total")
	}

	plan.items = append(fundItems, normalItems...)
	return plan, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
