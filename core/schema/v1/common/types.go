package common

import (
	"bytes"
	"encoding/json"
	"math"
)

// Optional is a value that may be absent. The zero Optional is absent, which
// keeps "not configured" distinct from "configured as zero".
type Optional[T any] struct {
	value   T
	present bool
}

func Some[T any](value T) Optional[T] {
	return Optional[T]{value: value, present: true}
}

func None[T any]() Optional[T] {
	return Optional[T]{}
}

func (o Optional[T]) Get() (T, bool) {
	return o.value, o.present
}

func (o Optional[T]) Present() bool {
	return o.present
}

// IsZero lets encoding/json omit absent values under the omitzero tag option.
func (o Optional[T]) IsZero() bool {
	return !o.present
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.present {
		return []byte("null"), nil
	}
	if number, ok := any(o.value).(float64); ok && (math.IsNaN(number) || math.IsInf(number, 0)) {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Optional[T]{}
		return nil
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*o = Some(value)
	return nil
}

// FiniteOrNil maps non-finite floats to nil so they serialize as JSON null.
// The mapping is lossy: +Inf and -Inf decode back as NaN through NaNIfNil.
func FiniteOrNil(value float64) *float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil
	}
	return &value
}

// NaNIfNil is the inverse of FiniteOrNil.
func NaNIfNil(value *float64) float64 {
	if value == nil {
		return math.NaN()
	}
	return *value
}
