package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want Quantity
	}{
		{"0", 0},
		{"1", NewQuantity(1)},
		{"12.5", NewQuantityFromInt64Scaled(125_000)},
		{"0.0001", NewQuantityFromInt64Scaled(1)},
		{"-3.25", NewQuantityFromInt64Scaled(-32_500)},
		{"+7", NewQuantity(7)},
		{".5", NewQuantityFromInt64Scaled(5_000)},
		{"1.23456789", NewQuantityFromInt64Scaled(12_345)}, // truncated past 4 digits
		{"1e2", NewQuantity(100)},
	}
	for _, tt := range tests {
		got, err := ParseQuantity(tt.in)
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}

	_, err := ParseQuantity("")
	assert.Error(t, err)
	_, err = ParseQuantity("abc")
	assert.Error(t, err)
}

func TestQuantity_String(t *testing.T) {
	assert.Equal(t, "0.0000", Quantity(0).String())
	assert.Equal(t, "12.5000", NewQuantityFromFloat64(12.5).String())
	assert.Equal(t, "-3.2500", NewQuantityFromFloat64(-3.25).String())
	assert.Equal(t, "0.0001", NewQuantityFromInt64Scaled(1).String())
}

func TestQuantity_Decimal(t *testing.T) {
	assert.True(t, MustMoney("12.5").Equal(NewQuantityFromFloat64(12.5).Decimal()))
	assert.True(t, MustMoney("-3.25").Equal(NewQuantityFromFloat64(-3.25).Decimal()))
	assert.True(t, MustMoney("0.0001").Equal(NewQuantityFromInt64Scaled(1).Decimal()))
	assert.True(t, MustMoney("0").Equal(Quantity(0).Decimal()))

	// Multiplying with Money stays exact.
	total := MustMoney("2.50").Mul(NewQuantity(100).Decimal())
	assert.True(t, MustMoney("250").Equal(total))
}

func TestQuantity_JSONRoundTrip(t *testing.T) {
	q := NewQuantityFromFloat64(12.5)

	data, err := json.Marshal(q)
	require.NoError(t, err)
	assert.Equal(t, "12.5000", string(data))

	var back Quantity
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, q, back)

	// Strings and null are accepted on input.
	require.NoError(t, json.Unmarshal([]byte(`"3.75"`), &back))
	assert.Equal(t, NewQuantityFromFloat64(3.75), back)

	require.NoError(t, json.Unmarshal([]byte(`null`), &back))
	assert.True(t, back.IsZero())
}

func TestQuantity_Arithmetic(t *testing.T) {
	a := NewQuantity(10)
	b := NewQuantity(3)

	assert.Equal(t, NewQuantity(13), a+b)
	assert.Equal(t, NewQuantity(7), a-b)
	assert.Equal(t, b, a.Min(b))
	assert.Equal(t, b, b.Min(a))
	assert.Equal(t, NewQuantity(-10), a.Neg())
	assert.Equal(t, a, a.Neg().Abs())
	assert.True(t, a.IsPositive())
	assert.True(t, a.Neg().IsNegative())
	assert.True(t, Quantity(0).IsZero())
}
