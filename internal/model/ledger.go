package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lot is one batch of foreign currency received at one rate on one date.
// AcquisitionRate and CostBasis are fixed at creation: they anchor the tax
// base and must never be recomputed. Only RemainingQuantity changes, and only
// downwards, when disposals consume the lot.
type Lot struct {
	LotID             int64
	UserID            int64
	OriginalQuantity  decimal.Decimal // USD
	RemainingQuantity decimal.Decimal // USD
	AcquisitionRate   decimal.Decimal // UAH per unit on acquisition date
	CostBasis         decimal.Decimal // UAH, OriginalQuantity * AcquisitionRate
	AcquisitionDate   time.Time       // calendar date, FIFO ordering key
}

// Disposal is the append-only record of one sale.
type Disposal struct {
	DisposalID   int64
	UserID       int64
	Quantity     decimal.Decimal
	DisposalRate decimal.Decimal
	DisposalDate time.Time
	Proceeds     decimal.Decimal // UAH, Quantity * DisposalRate
	CostBasis    decimal.Decimal // UAH pulled from consumed lots
	Profit       decimal.Decimal // UAH, Proceeds - CostBasis
}

// LotConsumption is one element of a FIFO allocation plan: take Consumed from
// the lot and count CostBasis (the proportional share of the lot's cost basis)
// towards the disposal.
type LotConsumption struct {
	LotID     int64
	Consumed  decimal.Decimal
	CostBasis decimal.Decimal
}

type DisposalResult struct {
	Quantity     decimal.Decimal
	DisposalRate decimal.Decimal
	DisposalDate time.Time
	Proceeds     decimal.Decimal
	CostBasis    decimal.Decimal
	Profit       decimal.Decimal
	NewBalance   decimal.Decimal
}

type ValuationStatus struct {
	Balance          decimal.Decimal // USD left across open lots
	CostBasis        decimal.Decimal // UAH tied up in the remaining quantity
	CurrentValue     decimal.Decimal // UAH at the live rate
	UnrealizedProfit decimal.Decimal
	LiveRate         decimal.Decimal
}

// TaxReport is the raw material for the xlsx export.
type TaxReport struct {
	Lots      []Lot
	Disposals []Disposal
}
