package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Amount is a monetary value that may be missing from an extracted receipt.
// Vision models occasionally return numbers as strings, nulls, or garbage, so
// decoding never fails: anything that is not a finite number becomes absent.
type Amount struct {
	Value float64
	Valid bool
}

// Some returns a present Amount.
func Some(v float64) Amount {
	return Amount{Value: v, Valid: true}
}

// Or returns the value, or def when the amount is absent.
func (a Amount) Or(def float64) float64 {
	if !a.Valid {
		return def
	}
	return a.Value
}

// IsZero reports whether the amount is absent. It lets `omitzero` drop absent amounts.
func (a Amount) IsZero() bool {
	return !a.Valid
}

// MarshalJSON implements json.Marshaler
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, a.Value, 'f', -1, 64), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (a *Amount) UnmarshalJSON(data []byte) error {
	*a = Amount{}

	text := strings.TrimSpace(string(data))
	if text == "" || text == "null" {
		return nil
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		text = strings.TrimSpace(s)
	}

	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	*a = Some(v)
	return nil
}
