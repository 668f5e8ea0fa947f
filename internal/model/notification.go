package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type SubscriptionStatus int

const (
	SubscriptionActive SubscriptionStatus = iota + 1
	SubscriptionCancelled
)

// Subscription is the per-user notification state. It lives in process memory
// only: notifications are best effort, not an accounting record. A zero
// LastNotifiedAt means the user was never notified since registration.
type Subscription struct {
	UserID           int64
	ChatID           int64
	Status           SubscriptionStatus
	LastNotifiedPnL  decimal.Decimal
	LastNotifiedRate decimal.Decimal
	LastNotifiedAt   time.Time
}

// PnLNotice is what the sweep sends out: the fresh valuation plus the delta
// against the previously notified unrealized PnL.
type PnLNotice struct {
	Valuation ValuationStatus
	PnLDelta  decimal.Decimal
	First     bool // no previous notification to diff against
}
