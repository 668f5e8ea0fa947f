package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel          string `env:"LOG_LEVEL"`
	Postgres          Postgres
	Telegram          Telegram
	Redis             Redis
	API               API
	Cache             Cache
	Currency          Currency
	Jobs              Jobs
	Notifications     Notifications
	GoogleDrive       GoogleDrive
	SessionExpiration time.Duration `env:"SESSION_EXPIRATION"`
}

type Postgres struct {
	Host            string `env:"PG_HOST"`
	Port            int    `env:"PG_PORT"`
	DbName          string `env:"PG_DB_NAME"`
	Password        string `env:"PG_PASSWORD"`
	User            string `env:"PG_USER"`
	MaxOpenConns    int    `env:"PG_MAX_OPEN_CONNS"`
	ConnMaxLifetime int    `env:"PG_CONN_MAX_LIFETIME"`
	MaxIdleConns    int    `env:"PG_MAX_IDLE_CONNS"`
	ConnMaxIdleTime int    `env:"PG_CONN_MAX_IDLE_TIME"`
	MigrationDir    string `env:"PG_MIGRATION_DIR"`
}

type Telegram struct {
	Token      string        `env:"TELEGRAM_TOKEN"`
	UpdTimeout time.Duration `env:"TELEGRAM_UPD_TIMEOUT"`
}

type Redis struct {
	Host     string `env:"REDIS_HOST"`
	Port     int    `env:"REDIS_PORT"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"`
}

type API struct {
	Debug   bool          `env:"API_DEBUG"`
	Timeout time.Duration `env:"API_TIMEOUT"`
	NbuApi  NbuApi
	MonoApi MonoApi
}

type NbuApi struct {
	Url string `env:"NBU_API_URL"`
}

type MonoApi struct {
	Url string `env:"MONO_API_URL"`
}

// Cache holds rate cache TTLs. Historical rates never change, so their entries
// live long; today's live rate must expire faster than the notification sweep
// cadence, otherwise sweeps keep serving the same intraday quote.
type Cache struct {
	HistoricalRateExpiration time.Duration `env:"CACHE_HISTORICAL_RATE_EXPIRATION"`
	LiveRateExpiration       time.Duration `env:"CACHE_LIVE_RATE_EXPIRATION"`
}

type Currency struct {
	Code            string `env:"CURRENCY_CODE"`              // e.g. USD
	NumericCode     int    `env:"CURRENCY_NUMERIC_CODE"`      // ISO 4217, e.g. 840
	BaseCode        string `env:"BASE_CURRENCY_CODE"`         // e.g. UAH
	BaseNumericCode int    `env:"BASE_CURRENCY_NUMERIC_CODE"` // ISO 4217, e.g. 980
}

type Jobs struct {
	PnlNotificationsCrontab string        `env:"PNL_NOTIFICATIONS_CRONTAB"`
	DriveCleanupInterval    time.Duration `env:"DRIVE_CLEANUP_JOB_INTERVAL"`
}

type Notifications struct {
	MinInterval time.Duration `env:"NOTIFICATIONS_MIN_INTERVAL"`
}

type GoogleDrive struct {
	CredentialsFile string        `env:"GOOGLE_DRIVE_CREDENTIALS_FILE"`
	FileTTL         time.Duration `env:"GOOGLE_DRIVE_FILE_TTL"`
}

func MustLoad() *Config {
	_ = godotenv.Load(".env")

	cfg := &Config{}

	opts := env.Options{RequiredIfNoDef: true}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		log.Fatalf("parse config error: %s", err)
	}

	return cfg
}
