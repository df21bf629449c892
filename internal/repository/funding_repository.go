package repository

import "context"

// ApplyPledgeの直後の状態。PrevAmountはゴール到達のエッジ検出に使う。
type FundingSnapshot struct {
	PrevAmount     int64
	CurrentAmount  int64
	GoalAmount     int64
	SupporterCount int64
}

type FundingRepository interface {
	// 支援額と支援者数をアトミックに加算して加算後の状態を返す。
	// read-modify-writeをアプリ側でやらないこと（同時支援でエッジ検出が壊れる）。
	ApplyPledge(ctx context.Context, productID int64, amount int64) (FundingSnapshot, error)
}
