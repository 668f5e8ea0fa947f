package nbuApi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/vbilyk/usd_tax_helper_bot/config"
	"github.com/vbilyk/usd_tax_helper_bot/internal/externalApi"
	"github.com/vbilyk/usd_tax_helper_bot/internal/model/nbuModel"
	"github.com/vbilyk/usd_tax_helper_bot/utils"
)

const nbuDateFormat = "20060102"

type NbuApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *NbuApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.NbuApi.Url)
	return &NbuApi{client: client}
}

// GetExchangeRate returns the official rate of currency against UAH on the given date.
// Returns externalApi.ErrNotFound when NBU has no rate for the currency on that date.
func (a *NbuApi) GetExchangeRate(ctx context.Context, currency string, date time.Time) (decimal.Decimal, error) {
	rqId := utils.GetRequestIDFromCtx(ctx)
	url := "/NBUStatService/v1/statdirectory/exchange"
	params := map[string]string{
		"valcode": currency,
		"date":    date.Format(nbuDateFormat),
		"json":    "",
	}

	slog.Debug("start NbuApi.GetExchangeRate request", slog.String("rqID", rqId))

	resp, err := a.client.R().
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		Get(url)

	if err != nil {
		slog.Error("error while dialing NbuApi", slog.String("err", err.Error()), slog.String("rqID", rqId))
		return decimal.Decimal{}, err
	}

	if resp.IsError() {
		err = fmt.Errorf("NbuApi responded with status %d", resp.StatusCode())
		slog.Error("unexpected status from NbuApi", slog.String("err", err.Error()), slog.String("rqID", rqId))
		return decimal.Decimal{}, err
	}

	rates := make([]nbuModel.ExchangeRate, 0, 1)
	err = json.Unmarshal(resp.Body(), &rates)
	if err != nil {
		slog.Error("can't unmarshall response into []nbuModel.ExchangeRate", slog.String("err", err.Error()), slog.String("rqID", rqId))
		return decimal.Decimal{}, err
	}

	for _, rate := range rates {
		if rate.Cc == currency {
			slog.Debug("NbuApi.GetExchangeRate request complete", slog.String("rqID", rqId))
			return rate.Rate, nil
		}
	}

	return decimal.Decimal{}, externalApi.ErrNotFound
}
