package model

import (
	"database/sql/driver"
	"encoding/json"
)

// ゲートウェイの生レスポンスなどを入れる汎用JSONカラム
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(src any) error {
	return scanJSON(src, m)
}
