package telegramApi

import (
	"context"
	"log/slog"

	"github.com/vbilyk/usd_tax_helper_bot/config"
	"github.com/vbilyk/usd_tax_helper_bot/utils"
	tele "gopkg.in/telebot.v4"
)

// TelegramApi is an outbound-only telegram client used by background jobs.
// It shares the bot token with the main bot but never polls for updates.
type TelegramApi struct {
	bot *tele.Bot
}

func New(cfg *config.Config) (*TelegramApi, error) {
	bot, err := tele.NewBot(tele.Settings{Token: cfg.Telegram.Token})
	if err != nil {
		return nil, err
	}
	return &TelegramApi{bot: bot}, nil
}

func (a *TelegramApi) SendMessage(ctx context.Context, chatID int64, text string, opts ...interface{}) error {
	rqId := utils.GetRequestIDFromCtx(ctx)

	slog.Debug("start TelegramApi.SendMessage request", slog.String("rqID", rqId), slog.Int64("chatID", chatID))

	_, err := a.bot.Send(tele.ChatID(chatID), text, opts...)
	if err != nil {
		slog.Error("error while sending telegram message", slog.String("err", err.Error()), slog.String("rqID", rqId), slog.Int64("chatID", chatID))
		return err
	}

	slog.Debug("TelegramApi.SendMessage request complete", slog.String("rqID", rqId))

	return nil
}
