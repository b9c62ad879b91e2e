package coordinator

import (
	"errors"
	"fmt"
	"maps"
	"time"
)

var (
	// ErrTypeMismatch is returned when a field is missing, nil or holds a
	// value of another type than requested.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrIndexOutOfRange is returned when a price list has no entry for the
	// requested hour, typically because it has not been published yet.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Snapshot field names.
const (
	FieldArea              = "area"
	FieldCurrentHour       = "current_hour"
	FieldMinPrice          = "min_price"
	FieldMaxPrice          = "max_price"
	FieldAvgPrice          = "avg_price"
	FieldTimeMin           = "time_min"
	FieldTimeMax           = "time_max"
	FieldPricesToday       = "prices_today"
	FieldPricesTomorrow    = "prices_tomorrow"
	FieldPrices            = "prices"
	FieldPricesTimestamped = "prices_timestamped"
	FieldLastRefresh       = "last_refresh"
)

// Snapshot is the processed price dataset keyed by field name.
type Snapshot map[string]any

func (s Snapshot) Float(key string) (float64, error) {
	v, ok := s[key].(float64)
	if !ok {
		return 0, fmt.Errorf("%s is %T, not float64: %w", key, s[key], ErrTypeMismatch)
	}
	return v, nil
}

func (s Snapshot) Int(key string) (int, error) {
	v, ok := s[key].(int)
	if !ok {
		return 0, fmt.Errorf("%s is %T, not int: %w", key, s[key], ErrTypeMismatch)
	}
	return v, nil
}

func (s Snapshot) Time(key string) (time.Time, error) {
	v, ok := s[key].(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("%s is %T, not time.Time: %w", key, s[key], ErrTypeMismatch)
	}
	return v, nil
}

func (s Snapshot) Floats(key string) ([]float64, error) {
	v, ok := s[key].([]float64)
	if !ok {
		return nil, fmt.Errorf("%s is %T, not []float64: %w", key, s[key], ErrTypeMismatch)
	}
	return v, nil
}

// PriceAt returns element i of the price list stored under key.
func (s Snapshot) PriceAt(key string, i int) (float64, error) {
	prices, err := s.Floats(key)
	if err != nil {
		return 0, err
	}
	if i < 0 || i >= len(prices) {
		return 0, fmt.Errorf("%s[%d] with %d prices: %w", key, i, len(prices), ErrIndexOutOfRange)
	}
	return prices[i], nil
}

// Without returns a shallow copy of s lacking the given keys.
func (s Snapshot) Without(keys ...string) Snapshot {
	c := maps.Clone(s)
	if c == nil {
		c = Snapshot{}
	}
	for _, k := range keys {
		delete(c, k)
	}
	return c
}

// IsNoData reports whether err means the requested data is not available.
func IsNoData(err error) bool {
	return errors.Is(err, ErrTypeMismatch) || errors.Is(err, ErrIndexOutOfRange)
}
