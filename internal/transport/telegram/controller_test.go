package telegram

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbilyk/usd_tax_helper_bot/utils"
)

func TestParseOperationParams(t *testing.T) {
	t.Run("amount only defaults to today", func(t *testing.T) {
		quantity, date, err := parseOperationParams("1000")
		require.NoError(t, err)
		assert.True(t, quantity.Equal(decimal.RequireFromString("1000")))
		assert.Equal(t, utils.Today(), date)
	})

	t.Run("amount with date", func(t *testing.T) {
		quantity, date, err := parseOperationParams("500.25 2026-01-10")
		require.NoError(t, err)
		assert.True(t, quantity.Equal(decimal.RequireFromString("500.25")))
		assert.Equal(t, "2026-01-10", utils.FormatDate(date))
	})

	t.Run("comma as a decimal separator", func(t *testing.T) {
		quantity, _, err := parseOperationParams("1000,50")
		require.NoError(t, err)
		assert.True(t, quantity.Equal(decimal.RequireFromString("1000.50")))
	})

	t.Run("surrounding whitespace is ignored", func(t *testing.T) {
		quantity, _, err := parseOperationParams("  42  2026-01-10 ")
		require.NoError(t, err)
		assert.True(t, quantity.Equal(decimal.RequireFromString("42")))
	})

	t.Run("rejects garbage", func(t *testing.T) {
		for _, text := range []string{
			"",
			"abc",
			"-5",
			"0",
			"1 2 3",
			"100 10.01.2026",
			"100 2026-13-40",
		} {
			_, _, err := parseOperationParams(text)
			assert.Error(t, err, "input %q", text)
		}
	})

	t.Run("rejects future dates", func(t *testing.T) {
		_, _, err := parseOperationParams("100 2999-01-01")
		require.Error(t, err)
	})
}
