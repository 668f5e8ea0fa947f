package tgbot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	tele "gopkg.in/telebot.v4"
	"gopkg.in/telebot.v4/middleware"

	"github.com/vbilyk/usd_tax_helper_bot/config"
	"github.com/vbilyk/usd_tax_helper_bot/data/session"
	"github.com/vbilyk/usd_tax_helper_bot/internal/model"
	"github.com/vbilyk/usd_tax_helper_bot/internal/model/tg/tgCallback"
	"github.com/vbilyk/usd_tax_helper_bot/internal/transport/telegram"
	customMW "github.com/vbilyk/usd_tax_helper_bot/internal/transport/telegram/middleware"
	"github.com/vbilyk/usd_tax_helper_bot/utils"
)

type Session interface {
	GetSession(ctx context.Context, key string) (model.Session, error)
	SetSession(ctx context.Context, key string, session model.Session) error
}

type TGBot struct {
	bot     *tele.Bot
	ctrl    *telegram.Controller
	session Session
}

func New(cfg *config.Config, ctrl *telegram.Controller, session Session) *TGBot {
	settings := tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: &tele.LongPoller{Timeout: cfg.Telegram.UpdTimeout},
	}

	b, err := tele.NewBot(settings)
	if err != nil {
		slog.Error("error while tele.NewBot", slog.String("err", err.Error()))
		panic(err)
	}

	return &TGBot{bot: b, ctrl: ctrl, session: session}
}

func (b *TGBot) Start() {
	b.bot.Use(middleware.Recover(), customMW.Logger())

	b.setupRoutes()

	go b.bot.Start()
	slog.Info("tgbot started!")
}

func (b *TGBot) Stop() {
	slog.Info("start stopping tgbot")
	b.bot.Stop()
	slog.Info("tgbot stopped")
}

func (b *TGBot) setupRoutes() {
	// plain text carries the params for whatever action the chat is waiting on
	b.bot.Handle(tele.OnText, func(c tele.Context) error {
		ctx := utils.CreateCtxWithRqID(c)
		rqID := utils.GetRequestIDFromCtx(ctx)

		chatSession, err := b.session.GetSession(ctx, strconv.FormatInt(c.Chat().ID, 10))
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return c.Send("спочатку введіть одну з команд")
			}
			slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
			return c.Send("щось пішло не так, спробуйте пізніше")
		}

		c.Set("session", chatSession)

		switch chatSession.Action {
		case model.ExpectingIncomeParams:
			return b.ctrl.ProcessIncome(c)
		case model.ExpectingSellParams:
			return b.ctrl.ProcessSell(c)
		default:
			return c.Send("спочатку введіть одну з команд")
		}
	})

	b.bot.Handle("/start", b.ctrl.Start)
	b.bot.Handle("/income", b.ctrl.IncomeInit)
	b.bot.Handle("/sell", b.ctrl.SellInit)
	b.bot.Handle("/status", b.ctrl.Status)
	b.bot.Handle("/report", b.ctrl.Report)
	b.bot.Handle("/subscribe", b.ctrl.Subscribe)
	b.bot.Handle("/unsubscribe", b.ctrl.Unsubscribe)

	refreshBtn := tele.Btn{Unique: tgCallback.RefreshStatus}
	b.bot.Handle(&refreshBtn, b.ctrl.RefreshStatus)

	reportBtn := tele.Btn{Unique: tgCallback.GetReport}
	b.bot.Handle(&reportBtn, b.ctrl.Report)
}
