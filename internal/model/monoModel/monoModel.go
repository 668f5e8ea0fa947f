package monoModel

import "github.com/shopspring/decimal"

// CurrencyRate is a single element of the monobank /bank/currency response.
// Currencies are identified by ISO 4217 numeric codes.
type CurrencyRate struct {
	CurrencyCodeA int             `json:"currencyCodeA"`
	CurrencyCodeB int             `json:"currencyCodeB"`
	Date          int64           `json:"date"`
	RateBuy       decimal.Decimal `json:"rateBuy"`
	RateCross     decimal.Decimal `json:"rateCross"`
	RateSell      decimal.Decimal `json:"rateSell"`
}
