package monoApi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/vbilyk/usd_tax_helper_bot/config"
	"github.com/vbilyk/usd_tax_helper_bot/internal/externalApi"
	"github.com/vbilyk/usd_tax_helper_bot/internal/model/monoModel"
	"github.com/vbilyk/usd_tax_helper_bot/utils"
)

type MonoApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *MonoApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.MonoApi.Url)
	return &MonoApi{client: client}
}

// GetCurrencyRate returns the current buy rate for the codeA/codeB pair
// (ISO 4217 numeric codes). Returns externalApi.ErrNotFound when the pair
// is absent from the response or published without a buy rate.
func (a *MonoApi) GetCurrencyRate(ctx context.Context, codeA, codeB int) (decimal.Decimal, error) {
	rqId := utils.GetRequestIDFromCtx(ctx)
	url := "/bank/currency"

	slog.Debug("start MonoApi.GetCurrencyRate request", slog.String("rqID", rqId))

	resp, err := a.client.R().
		SetHeader("Accept", "application/json").
		Get(url)

	if err != nil {
		slog.Error("error while dialing MonoApi", slog.String("err", err.Error()), slog.String("rqID", rqId))
		return decimal.Decimal{}, err
	}

	if resp.IsError() {
		err = fmt.Errorf("MonoApi responded with status %d", resp.StatusCode())
		slog.Error("unexpected status from MonoApi", slog.String("err", err.Error()), slog.String("rqID", rqId))
		return decimal.Decimal{}, err
	}

	rates := make([]monoModel.CurrencyRate, 0)
	err = json.Unmarshal(resp.Body(), &rates)
	if err != nil {
		slog.Error("can't unmarshall response into []monoModel.CurrencyRate", slog.String("err", err.Error()), slog.String("rqID", rqId))
		return decimal.Decimal{}, err
	}

	for _, rate := range rates {
		if rate.CurrencyCodeA == codeA && rate.CurrencyCodeB == codeB {
			if rate.RateBuy.IsZero() {
				break // pair is published with cross rate only
			}
			slog.Debug("MonoApi.GetCurrencyRate request complete", slog.String("rqID", rqId))
			return rate.RateBuy, nil
		}
	}

	return decimal.Decimal{}, externalApi.ErrNotFound
}
