package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Lot struct {
	LotID             int64           `db:"lot_id"`
	UserID            int64           `db:"user_id"`
	OriginalQuantity  decimal.Decimal `db:"original_quantity"`
	RemainingQuantity decimal.Decimal `db:"remaining_quantity"`
	AcquisitionRate   decimal.Decimal `db:"acquisition_rate"`
	CostBasis         decimal.Decimal `db:"cost_basis"`
	AcquisitionDate   time.Time       `db:"acquisition_date"`
	CreatedAt         time.Time       `db:"dt_create"`
}

type Disposal struct {
	DisposalID   int64           `db:"disposal_id"`
	UserID       int64           `db:"user_id"`
	Quantity     decimal.Decimal `db:"quantity"`
	DisposalRate decimal.Decimal `db:"disposal_rate"`
	DisposalDate time.Time       `db:"disposal_date"`
	Proceeds     decimal.Decimal `db:"proceeds"`
	CostBasis    decimal.Decimal `db:"cost_basis"`
	Profit       decimal.Decimal `db:"profit"`
	CreatedAt    time.Time       `db:"dt_create"`
}
