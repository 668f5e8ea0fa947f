package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vbilyk/usd_tax_helper_bot/config"
	"github.com/vbilyk/usd_tax_helper_bot/data"
	"github.com/vbilyk/usd_tax_helper_bot/data/cache"
	"github.com/vbilyk/usd_tax_helper_bot/data/repository/postgres"
	"github.com/vbilyk/usd_tax_helper_bot/data/session"
	"github.com/vbilyk/usd_tax_helper_bot/internal/externalApi/cloudStorageApi/googleDriveApi"
	"github.com/vbilyk/usd_tax_helper_bot/internal/externalApi/monoApi"
	"github.com/vbilyk/usd_tax_helper_bot/internal/externalApi/nbuApi"
	"github.com/vbilyk/usd_tax_helper_bot/internal/externalApi/telegramApi"
	"github.com/vbilyk/usd_tax_helper_bot/internal/reportGenerator/xlsxGenerator"
	"github.com/vbilyk/usd_tax_helper_bot/internal/scheduler"
	"github.com/vbilyk/usd_tax_helper_bot/internal/service/ledgerService"
	"github.com/vbilyk/usd_tax_helper_bot/internal/service/notifyService"
	"github.com/vbilyk/usd_tax_helper_bot/internal/service/rateService"
	"github.com/vbilyk/usd_tax_helper_bot/internal/tgbot"
	"github.com/vbilyk/usd_tax_helper_bot/internal/transport/telegram"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	slog.Debug("config", slog.Any("cfg", cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgClient := data.NewPostgresClient(cfg)
	defer pgClient.Close()

	pgRepo := postgres.NewPostgres(cfg, pgClient)

	redisClient := data.NewRedisClient(cfg)
	defer redisClient.Close()

	redisCache := cache.NewRedisCache(redisClient, cfg)
	redisSession := session.NewRedisSession(redisClient, cfg)

	nbuApiClient := nbuApi.New(cfg)
	monoApiClient := monoApi.New(cfg)

	telegramSender, err := telegramApi.New(cfg)
	if err != nil {
		slog.Error("error while telegramApi.New", slog.String("err", err.Error()))
		panic(err)
	}

	reportGenerator := xlsxGenerator.New()

	googleCloudStorage := googleDriveApi.New(ctx, cfg)

	rateSrv := rateService.New(cfg, redisCache, nbuApiClient, monoApiClient)

	ledgerSrv := ledgerService.New(cfg, pgRepo, rateSrv, reportGenerator, googleCloudStorage)

	notifySrv := notifyService.New(cfg, ledgerSrv, telegramSender)

	sched := scheduler.New()
	sched.NewCrontabJob("pnl notifications", notifySrv.NotifySubscribers, cfg.Jobs.PnlNotificationsCrontab, false)
	sched.NewIntervalJob("google drive cleanup", googleCloudStorage.DeleteOldFiles, cfg.Jobs.DriveCleanupInterval, true)
	sched.Start()
	defer sched.Stop()

	tgController := telegram.NewController(ledgerSrv, notifySrv, redisSession)

	tgBot := tgbot.New(cfg, tgController, redisSession)
	tgBot.Start()
	defer tgBot.Stop()

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-interrupt
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
