package rateService

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vbilyk/usd_tax_helper_bot/config"
	"github.com/vbilyk/usd_tax_helper_bot/data/cache"
	"github.com/vbilyk/usd_tax_helper_bot/internal/externalApi"
	"github.com/vbilyk/usd_tax_helper_bot/internal/service"
	"github.com/vbilyk/usd_tax_helper_bot/utils"
)

type NbuApi interface {
	GetExchangeRate(ctx context.Context, currency string, date time.Time) (decimal.Decimal, error)
}

type MonoApi interface {
	GetCurrencyRate(ctx context.Context, codeA, codeB int) (decimal.Decimal, error)
}

type Cache interface {
	GetRate(ctx context.Context, provider, currency string, date time.Time) (decimal.Decimal, error)
	SetRate(ctx context.Context, provider, currency string, date time.Time, rate decimal.Decimal) error
}

type RateService struct {
	cfg     *config.Config
	cache   Cache
	nbuApi  NbuApi
	monoApi MonoApi
}

func New(cfg *config.Config, cache Cache, nbuApi NbuApi, monoApi MonoApi) *RateService {
	return &RateService{
		cfg:     cfg,
		cache:   cache,
		nbuApi:  nbuApi,
		monoApi: monoApi,
	}
}

// GetAcquisitionRate returns the official rate for the given calendar date.
// Official rates are the tax anchor, they come from the regulator only:
// there is no fallback, a missing quote fails the calling operation.
func (s *RateService) GetAcquisitionRate(ctx context.Context, date time.Time) (rate decimal.Decimal, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RateService.GetAcquisitionRate"

	date = utils.ToDate(date)

	slog.Debug("GetAcquisitionRate start", slog.String("rqID", rqID), slog.String("op", op), slog.String("date", utils.FormatDate(date)))
	defer func() {
		slog.Debug("GetAcquisitionRate finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	rate, err = s.cache.GetRate(ctx, cache.ProviderNbu, s.cfg.Currency.Code, date)
	if err == nil {
		return rate, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		slog.Warn("can't get rate from cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	rate, err = s.nbuApi.GetExchangeRate(ctx, s.cfg.Currency.Code, date)
	if err != nil {
		if errors.Is(err, externalApi.ErrNotFound) {
			slog.Warn("rate not found in nbuApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("date", utils.FormatDate(date)))
			return decimal.Decimal{}, service.ErrRateNotFound
		}
		slog.Error("can't get rate from nbuApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return decimal.Decimal{}, service.ErrRateUnavailable
	}

	go s.cache.SetRate(context.WithoutCancel(ctx), cache.ProviderNbu, s.cfg.Currency.Code, date, rate)

	return rate, nil
}

// GetDisposalRate returns the rate a sale on the given date is priced at.
// Past dates are priced at the official rate. Today is priced at the bank's
// live buy quote when the bank answers, at today's official rate when it
// does not: the bank is an optional refinement, never a point of failure.
func (s *RateService) GetDisposalRate(ctx context.Context, date time.Time) (rate decimal.Decimal, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RateService.GetDisposalRate"

	date = utils.ToDate(date)

	slog.Debug("GetDisposalRate start", slog.String("rqID", rqID), slog.String("op", op), slog.String("date", utils.FormatDate(date)))
	defer func() {
		slog.Debug("GetDisposalRate finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	if !utils.IsToday(date) {
		return s.GetAcquisitionRate(ctx, date)
	}

	rate, err = s.cache.GetRate(ctx, cache.ProviderMono, s.cfg.Currency.Code, date)
	if err == nil {
		return rate, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		slog.Warn("can't get rate from cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	rate, err = s.monoApi.GetCurrencyRate(ctx, s.cfg.Currency.NumericCode, s.cfg.Currency.BaseNumericCode)
	if err != nil {
		slog.Warn("can't get live rate from monoApi, falling back to official rate", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return s.GetAcquisitionRate(ctx, date)
	}

	go s.cache.SetRate(context.WithoutCancel(ctx), cache.ProviderMono, s.cfg.Currency.Code, date, rate)

	return rate, nil
}

// GetLiveRate returns the disposal rate for today, for valuation.
func (s *RateService) GetLiveRate(ctx context.Context) (decimal.Decimal, error) {
	return s.GetDisposalRate(ctx, utils.Today())
}
