package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// 商品オプションのスキーマ（グループ単位）
type OptionValue struct {
	Label      string `json:"label"`
	PriceDelta int64  `json:"price_delta"`
}

type OptionGroup struct {
	Name   string        `json:"name"`
	Values []OptionValue `json:"values"`
}

// JSONBカラムに保存する
type OptionSchema []OptionGroup

func (s OptionSchema) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *OptionSchema) Scan(src any) error {
	return scanJSON(src, s)
}

// 選択済みオプション（正規化後は name/label のみ）
type SelectedOption struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

type SelectedOptions []SelectedOption

func (s SelectedOptions) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *SelectedOptions) Scan(src any) error {
	return scanJSON(src, s)
}

func scanJSON(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return errors.New("unsupported json column type")
	}
}
