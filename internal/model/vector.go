package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Vector is an embedding stored as a JSON array of float32 in a text column.
// An empty vector is written as SQL NULL so "embedding IS NULL" marks un-embedded chunks.
type Vector []float32

func (v Vector) Value() (driver.Value, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal([]float32(v))
	if err != nil {
		return nil, fmt.Errorf("marshal vector failed: %w", err)
	}
	return string(b), nil
}

func (v *Vector) Scan(src interface{}) error {
	var raw []byte
	switch s := src.(type) {
	case nil:
		*v = nil
		return nil
	case string:
		raw = []byte(s)
	case []byte:
		raw = s
	default:
		return fmt.Errorf("unsupported vector source type %T", src)
	}
	if len(raw) == 0 {
		*v = nil
		return nil
	}
	var out []float32
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("unmarshal vector failed: %w", err)
	}
	*v = out
	return nil
}

// GormDataType keeps the column as text on every dialect.
func (Vector) GormDataType() string {
	return "text"
}
