package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_New_RoundsToCents(t *testing.T) {
	assert.Equal(t, int64(75), New(decimal.RequireFromString("0.75")).Cents())
	assert.Equal(t, int64(13), New(decimal.RequireFromString("0.125")).Cents())
	assert.Equal(t, int64(12), New(decimal.RequireFromString("0.1249")).Cents())
}

func Test_NewFromString_RejectsNegativeAndGarbage(t *testing.T) {
	_, err := NewFromString("-1.00")
	assert.ErrorIs(t, err, ErrNegativeAmount)

	_, err = NewFromString("abc")
	assert.Error(t, err)

	m, err := NewFromString(" 12.30 ")
	require.NoError(t, err)
	assert.Equal(t, "12.30", m.String())
}

func Test_Money_JSONRoundTrip(t *testing.T) {
	m := FromCents(50)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `"0.50"`, string(data))

	var back Money
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, m, back)

	require.NoError(t, json.Unmarshal([]byte(`1.5`), &back))
	assert.Equal(t, int64(150), back.Cents())
}

func Test_Money_Add(t *testing.T) {
	assert.Equal(t, FromCents(125), FromCents(75).Add(FromCents(50)))
	assert.True(t, Zero().IsZero())
}

func Test_Rate_Charge(t *testing.T) {
	rate := MustParseRate("0.05")

	assert.Equal(t, "0.75", rate.Charge(15).String())
	assert.Equal(t, "0.50", rate.Charge(10).String())
	assert.True(t, rate.Charge(0).IsZero())
	assert.True(t, rate.Charge(-3).IsZero())

	third := MustParseRate("0.0333")
	assert.Equal(t, "0.03", third.Charge(1).String())
	assert.Equal(t, "0.33", third.Charge(10).String())
}

func Test_ParseRate_RejectsNegative(t *testing.T) {
	_, err := ParseRate("-0.01")
	assert.ErrorIs(t, err, ErrNegativeAmount)

	_, err = ParseRate("")
	assert.Error(t, err)
}
