// Package fifo plans lot consumption for disposals. Planning is pure: lots
// come in ordered, a plan comes out, storage is only touched when the caller
// applies the plan in its own transaction.
package fifo

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/vbilyk/usd_tax_helper_bot/internal/model"
)

var (
	ErrInsufficient        = errors.New("not enough quantity in open lots")
	ErrNonPositiveQuantity = errors.New("quantity must be positive")
)

// Allocate walks lots in the given order (oldest first) and plans how the
// requested quantity is consumed. The cost basis charged for a partial
// consumption is the consumed share of the lot's original quantity applied to
// the lot's recorded basis: consumed / original * basis. The recorded basis
// stays authoritative, nothing is ever recomputed from the acquisition rate.
func Allocate(lots []model.Lot, quantity decimal.Decimal) (plan []model.LotConsumption, costBasis decimal.Decimal, err error) {
	if !quantity.IsPositive() {
		return nil, decimal.Decimal{}, ErrNonPositiveQuantity
	}

	left := quantity

	for _, lot := range lots {
		if left.IsZero() {
			break
		}
		if !lot.RemainingQuantity.IsPositive() {
			continue
		}

		consumed := lot.RemainingQuantity
		if consumed.GreaterThan(left) {
			consumed = left
		}

		share := consumed.Mul(lot.CostBasis).Div(lot.OriginalQuantity)

		plan = append(plan, model.LotConsumption{
			LotID:     lot.LotID,
			Consumed:  consumed,
			CostBasis: share,
		})
		costBasis = costBasis.Add(share)
		left = left.Sub(consumed)
	}

	if left.IsPositive() {
		return nil, decimal.Decimal{}, ErrInsufficient
	}

	return plan, costBasis, nil
}
