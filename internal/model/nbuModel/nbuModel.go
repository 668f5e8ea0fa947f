package nbuModel

import "github.com/shopspring/decimal"

// ExchangeRate is a single element of the NBU exchange endpoint response.
type ExchangeRate struct {
	R030         int             `json:"r030"`
	Txt          string          `json:"txt"`
	Rate         decimal.Decimal `json:"rate"`
	Cc           string          `json:"cc"`
	ExchangeDate string          `json:"exchangedate"`
}
