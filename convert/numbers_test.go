package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundFloat64(t *testing.T) {
	tests := []struct {
		in       float64
		decimals int
		expected float64
	}{
		{1.23456, 2, 1.23},
		{1.235, 1, 1.2},
		{-0.04449, 3, -0.044},
		{10, 0, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, RoundFloat64(tt.in, tt.decimals))
	}
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 50.0, Percentage(0.1, 0.2))
	assert.Equal(t, 33.3, Percentage(1, 3))
	assert.Equal(t, 100.0, Percentage(0.3, 0.3))
}

func TestMWh2KWh(t *testing.T) {
	assert.Equal(t, 0.085, MWh2KWh(85))
}
