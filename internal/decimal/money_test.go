package decimal_test

import (
	"testing"

	dec "github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/nfse-cli/internal/decimal"
)

func TestFromInt(t *testing.T) {
	d := decimal.FromInt(1500)
	assert.True(t, d.Equal(dec.NewFromInt(1500)))
}

func TestFromFloat(t *testing.T) {
	d := decimal.FromFloat(100.555)
	// Should round to 2 decimal places
	assert.True(t, d.Equal(dec.NewFromFloat(100.56)))
}

func TestFromString(t *testing.T) {
	d, err := decimal.FromString("1500.00")
	require.NoError(t, err)
	assert.True(t, d.Equal(dec.NewFromInt(1500)))

	d, err = decimal.FromString(" 1500,50 ")
	require.NoError(t, err)
	assert.True(t, d.Equal(dec.RequireFromString("1500.50")))

	_, err = decimal.FromString("1.500,50")
	require.Error(t, err)

	_, err = decimal.FromString("not-a-number")
	require.Error(t, err)
}

func TestMustFromString(t *testing.T) {
	d := decimal.MustFromString("999.99")
	assert.True(t, d.Equal(dec.RequireFromString("999.99")))

	assert.Panics(t, func() {
		decimal.MustFromString("invalid")
	})
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1500", "1500.00"},
		{"1500.5", "1500.50"},
		{"0.005", "0.01"},
		{"2", "2.00"},
		{"123.456", "123.46"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, decimal.Format(dec.RequireFromString(tt.in)))
		})
	}
}

func TestPercentage(t *testing.T) {
	result := decimal.Percentage(dec.NewFromInt(1500), dec.RequireFromString("2.5"))
	assert.True(t, result.Equal(dec.RequireFromString("37.5")))
}

func TestIsPositive(t *testing.T) {
	assert.True(t, decimal.IsPositive(dec.NewFromInt(1)))
	assert.False(t, decimal.IsPositive(dec.Zero))
	assert.False(t, decimal.IsPositive(dec.NewFromInt(-1)))
}

func TestIsNonNegative(t *testing.T) {
	assert.True(t, decimal.IsNonNegative(dec.NewFromInt(1)))
	assert.True(t, decimal.IsNonNegative(dec.Zero))
	assert.False(t, decimal.IsNonNegative(dec.NewFromInt(-1)))
}

func TestBetween(t *testing.T) {
	lo, hi := dec.NewFromInt(2), dec.NewFromInt(5)
	assert.True(t, decimal.Between(dec.NewFromInt(2), lo, hi))
	assert.True(t, decimal.Between(dec.NewFromInt(5), lo, hi))
	assert.False(t, decimal.Between(dec.RequireFromString("5.01"), lo, hi))
	assert.False(t, decimal.Between(dec.RequireFromString("1.99"), lo, hi))
}
