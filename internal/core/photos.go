package core

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// PhotoList is stored as a JSON array in a single text column.
type PhotoList []string

// Value implements driver.Valuer.
func (p PhotoList) Value() (driver.Value, error) {
	if len(p) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([]string(p))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner. NULL and empty strings decode to an empty list.
func (p *PhotoList) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*p = nil
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("scan photo list: unsupported type %T", src)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*p = nil
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return fmt.Errorf("scan photo list: %w", err)
	}
	*p = cleanPhotos(out)
	return nil
}

func cleanPhotos(in []string) PhotoList {
	out := make(PhotoList, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
