package fifo

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbilyk/usd_tax_helper_bot/internal/model"
)

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func lot(id int64, original, remaining, rate string, acquired string) model.Lot {
	orig := decimal.RequireFromString(original)
	r := decimal.RequireFromString(rate)
	return model.Lot{
		LotID:             id,
		OriginalQuantity:  orig,
		RemainingQuantity: decimal.RequireFromString(remaining),
		AcquisitionRate:   r,
		CostBasis:         orig.Mul(r),
		AcquisitionDate:   date(acquired),
	}
}

func TestAllocate_OldestLotsConsumedFirst(t *testing.T) {
	// 50 USD on Jan 1, 100 USD on Jan 15, selling 75:
	// the first lot empties, the second gives up 25 and keeps 75.
	lots := []model.Lot{
		lot(1, "50", "50", "40", "2026-01-01"),
		lot(2, "100", "100", "41", "2026-01-15"),
	}

	plan, costBasis, err := Allocate(lots, decimal.NewFromInt(75))

	require.NoError(t, err)
	require.Len(t, plan, 2)

	assert.Equal(t, int64(1), plan[0].LotID)
	assert.True(t, plan[0].Consumed.Equal(decimal.NewFromInt(50)), "first lot should be fully consumed")
	assert.Equal(t, int64(2), plan[1].LotID)
	assert.True(t, plan[1].Consumed.Equal(decimal.NewFromInt(25)), "second lot should give up 25")

	// 50*40 + 25*41
	assert.True(t, costBasis.Equal(decimal.NewFromInt(3025)), "cost basis should combine both lots")
}

func TestAllocate_PartialConsumptionTakesProportionalBasis(t *testing.T) {
	// Lot of 100 USD bought at 40 carries 4000 UAH of basis.
	// Consuming 25 of it must charge 25/100 * 4000 = 1000 UAH.
	lots := []model.Lot{lot(1, "100", "100", "40", "2026-02-01")}

	plan, costBasis, err := Allocate(lots, decimal.NewFromInt(25))

	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.True(t, plan[0].CostBasis.Equal(decimal.NewFromInt(1000)))
	assert.True(t, costBasis.Equal(decimal.NewFromInt(1000)))
}

func TestAllocate_ProportionalBasisSurvivesRepeatedConsumption(t *testing.T) {
	// A lot already half consumed still charges against its original
	// quantity, not against what is left.
	l := lot(1, "200", "100", "40", "2026-02-01")

	plan, costBasis, err := Allocate([]model.Lot{l}, decimal.NewFromInt(50))

	require.NoError(t, err)
	require.Len(t, plan, 1)
	// 50/200 * 8000 = 2000
	assert.True(t, costBasis.Equal(decimal.NewFromInt(2000)))
	assert.True(t, plan[0].Consumed.Equal(decimal.NewFromInt(50)))
}

func TestAllocate_InsufficientQuantity(t *testing.T) {
	lots := []model.Lot{
		lot(1, "50", "50", "40", "2026-01-01"),
		lot(2, "50", "50", "41", "2026-01-02"),
	}

	plan, _, err := Allocate(lots, decimal.NewFromInt(150))

	require.ErrorIs(t, err, ErrInsufficient)
	assert.Nil(t, plan)
}

func TestAllocate_ExactExhaustion(t *testing.T) {
	lots := []model.Lot{
		lot(1, "50", "50", "40", "2026-01-01"),
		lot(2, "100", "100", "41", "2026-01-15"),
	}

	plan, _, err := Allocate(lots, decimal.NewFromInt(150))

	require.NoError(t, err)
	require.Len(t, plan, 2)

	total := decimal.Zero
	for _, c := range plan {
		total = total.Add(c.Consumed)
	}
	assert.True(t, total.Equal(decimal.NewFromInt(150)), "plan should consume exactly what was asked")
}

func TestAllocate_ConsumedQuantityIsConserved(t *testing.T) {
	lots := []model.Lot{
		lot(1, "10.50", "10.50", "39.95", "2026-01-01"),
		lot(2, "0.01", "0.01", "40.10", "2026-01-02"),
		lot(3, "300", "123.45", "41.33", "2026-01-03"),
	}
	want := decimal.RequireFromString("77.77")

	plan, _, err := Allocate(lots, want)

	require.NoError(t, err)

	total := decimal.Zero
	for _, c := range plan {
		total = total.Add(c.Consumed)
	}
	assert.True(t, total.Equal(want), "consumed total %s should equal requested %s", total, want)
}

func TestAllocate_EmptyLotsAreSkipped(t *testing.T) {
	lots := []model.Lot{
		lot(1, "50", "0", "40", "2026-01-01"),
		lot(2, "100", "100", "41", "2026-01-15"),
	}

	plan, _, err := Allocate(lots, decimal.NewFromInt(10))

	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, int64(2), plan[0].LotID)
}

func TestAllocate_SameDateLotsKeepInputOrder(t *testing.T) {
	lots := []model.Lot{
		lot(7, "50", "50", "40", "2026-01-01"),
		lot(9, "50", "50", "41", "2026-01-01"),
	}

	plan, _, err := Allocate(lots, decimal.NewFromInt(60))

	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, int64(7), plan[0].LotID)
	assert.Equal(t, int64(9), plan[1].LotID)
}

func TestAllocate_InputLotsAreNotMutated(t *testing.T) {
	lots := []model.Lot{
		lot(1, "50", "50", "40", "2026-01-01"),
		lot(2, "100", "100", "41", "2026-01-15"),
	}

	_, _, err := Allocate(lots, decimal.NewFromInt(75))

	require.NoError(t, err)
	assert.True(t, lots[0].RemainingQuantity.Equal(decimal.NewFromInt(50)))
	assert.True(t, lots[1].RemainingQuantity.Equal(decimal.NewFromInt(100)))
}

func TestAllocate_RejectsNonPositiveQuantity(t *testing.T) {
	lots := []model.Lot{lot(1, "50", "50", "40", "2026-01-01")}

	_, _, err := Allocate(lots, decimal.Zero)
	require.ErrorIs(t, err, ErrNonPositiveQuantity)

	_, _, err = Allocate(lots, decimal.NewFromInt(-5))
	require.ErrorIs(t, err, ErrNonPositiveQuantity)
}
