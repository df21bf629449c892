package usecase

import (
	"net/http"

	"app/internal/domain/model"
)

// ResolveOptions は選択オプションをスキーマで正規化して単価を計算する。
// 全グループ必須（部分選択ポリシーは無い）。
func ResolveOptions(p model.Product, selected []model.SelectedOption) (model.SelectedOptions, int64, error) {
	price := p.Price

	// スキーマに無いグループ/値の選択は落とさずエラーにする
	groups := make(map[string]model.OptionGroup, len(p.Options))
	for _, g := range p.Options {
		groups[g.Name] = g
	}

	normalized := make(model.SelectedOptions, 0, len(p.Options))
	seen := make(map[string]bool, len(selected))

	for _, sel := range selected {
		g, ok := groups[sel.Name]
		if !ok {
			return nil, 0, NewHTTPError(http.StatusBadRequest, "invalid option selection")
		}
		if seen[sel.Name] {
			return nil, 0, NewHTTPError(http.StatusBadRequest, "invalid option selection")
		}

		var matched bool
		for _, v := range g.Values {
			if v.Label == sel.Label {
				price += v.PriceDelta
				matched = true
				break
			}
		}
		if !matched {
			return nil, 0, NewHTTPError(http.StatusBadRequest, "invalid option selection")
		}

		seen[sel.Name] = true
		normalized = append(normalized, model.SelectedOption{Name: sel.Name, Label: sel.Label})
	}

	// スキーマが空でなければ全グループの選択が必要
	if len(p.Options) > 0 && len(normalized) != len(p.Options) {
		return nil, 0, NewHTTPError(http.StatusBadRequest, "incomplete option selection")
	}

	if price < 0 {
		return nil, 0, NewHTTPError(http.StatusBadRequest, "invalid option selection")
	}

	return normalized, price, nil
}
