package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/vbilyk/usd_tax_helper_bot/config"
	"github.com/vbilyk/usd_tax_helper_bot/utils"
)

// Rate source labels, part of the cache key. The same date can hold both a
// regulator rate and a bank rate, they must never overwrite each other.
const (
	ProviderNbu  = "nbu"
	ProviderMono = "mono"
)

var ErrCacheMiss = errors.New("cache miss")

type RedisCache struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisCache(redisClient *redis.Client, cfg *config.Config) *RedisCache {
	return &RedisCache{redis: redisClient, cfg: cfg}
}

func rateKey(provider, currency string, date time.Time) string {
	return fmt.Sprintf("rate:%s:%s:%s", provider, currency, utils.FormatDate(date))
}

func (r *RedisCache) GetRate(ctx context.Context, provider, currency string, date time.Time) (decimal.Decimal, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("GetRate start", slog.String("rqID", rqID))

	key := rateKey(provider, currency, date)
	res, err := r.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return decimal.Decimal{}, ErrCacheMiss
		}
		slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", key))
		return decimal.Decimal{}, err
	}

	rate, err := decimal.NewFromString(res)
	if err != nil {
		slog.Error(
			"can't parse rate in GetRate",
			slog.String("rqID", rqID),
			slog.String("err", err.Error()),
			slog.String("resultFromRedis", res),
		)
		return decimal.Decimal{}, errors.New("can't parse cached rate")
	}

	slog.Debug("GetRate finished", slog.String("rqID", rqID))

	return rate, nil
}

// expirationFor picks the TTL by rate source. Official rates are fixed per
// date and live long. The bank's live quote moves intraday, its entry must
// die before the next scheduled valuation sweep.
func (r *RedisCache) expirationFor(provider string) time.Duration {
	if provider == ProviderMono {
		return r.cfg.Cache.LiveRateExpiration
	}
	return r.cfg.Cache.HistoricalRateExpiration
}

func (r *RedisCache) SetRate(ctx context.Context, provider, currency string, date time.Time, rate decimal.Decimal) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("SetRate start", slog.String("rqID", rqID))

	key := rateKey(provider, currency, date)
	_, err := r.redis.Set(ctx, key, rate.String(), r.expirationFor(provider)).Result()
	if err != nil {
		slog.Error("failed on redis.Set", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", key))
		return err
	}

	slog.Debug("SetRate completed", slog.String("rqID", rqID))

	return nil
}
