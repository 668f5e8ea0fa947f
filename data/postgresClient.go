package data

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/vbilyk/usd_tax_helper_bot/config"
)

const (
	pgConnAttempts   = 10
	pgConnRetryPause = time.Second
)

// NewPostgresClient connects to postgres, waits for the database to come up
// (the bot usually starts together with the db container) and applies pending
// migrations before handing the pool out.
func NewPostgresClient(cfg *config.Config) *sqlx.DB {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s sslmode=disable password=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.DbName,
		cfg.Postgres.Password,
	)

	var db *sqlx.DB
	var err error

	for attempt := 1; attempt <= pgConnAttempts; attempt++ {
		db, err = sqlx.Connect("pgx", dsn)
		if err == nil {
			break
		}

		slog.Info("waiting for postgres", slog.Int("attempt", attempt), slog.String("err", err.Error()))
		time.Sleep(pgConnRetryPause)
	}

	if err != nil {
		slog.Error("postgres connection attempts exhausted")
		panic(err)
	}

	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxIdleTime(time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second)

	slog.Info("postgres connected")

	migratePostgres(db, cfg.Postgres.MigrationDir)
	slog.Info("postgres migrated")

	return db
}

func migratePostgres(db *sqlx.DB, migrationDir string) {
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		slog.Error("migration driver init failed", slog.String("err", err.Error()))
		panic(err)
	}

	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", migrationDir), "postgres", driver)
	if err != nil {
		slog.Error("migrate instance init failed", slog.String("err", err.Error()))
		panic(err)
	}

	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		slog.Error("migration up failed", slog.String("err", err.Error()))
		panic(err)
	}
}
