package notifyService

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vbilyk/usd_tax_helper_bot/config"
	"github.com/vbilyk/usd_tax_helper_bot/internal/model"
	"github.com/vbilyk/usd_tax_helper_bot/utils"
)

type Ledger interface {
	ResolveUser(ctx context.Context, chatID int64) (int64, error)
	StatusForUser(ctx context.Context, userID int64) (model.ValuationStatus, error)
}

type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts ...interface{}) error
}

type NotifyService struct {
	cfg    *config.Config
	ledger Ledger
	sender MessageSender
	store  *subscriberStore
	now    func() time.Time
}

func New(cfg *config.Config, ledger Ledger, sender MessageSender) *NotifyService {
	return &NotifyService{
		cfg:    cfg,
		ledger: ledger,
		sender: sender,
		store:  newSubscriberStore(),
		now:    time.Now,
	}
}

func (s *NotifyService) Subscribe(ctx context.Context, chatID int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "NotifyService.Subscribe"

	userID, err := s.ledger.ResolveUser(ctx, chatID)
	if err != nil {
		slog.Error("got error from ledger.ResolveUser", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	s.store.subscribe(userID, chatID)
	slog.Info("user subscribed to pnl notifications", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	return nil
}

// Unsubscribe reports whether there was an active subscription to cancel.
func (s *NotifyService) Unsubscribe(ctx context.Context, chatID int64) (bool, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "NotifyService.Unsubscribe"

	userID, err := s.ledger.ResolveUser(ctx, chatID)
	if err != nil {
		slog.Error("got error from ledger.ResolveUser", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return false, err
	}

	cancelled := s.store.cancel(userID)
	slog.Info("user unsubscribed from pnl notifications", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID), slog.Bool("wasActive", cancelled))
	return cancelled, nil
}

// NotifySubscribers is the scheduled sweep over active subscriptions. Every
// subscriber is handled on its own: a failure for one user is logged and
// skipped so the rest still get their notice. The throttle state only moves
// forward after a successful send, a failed delivery is retried by the next
// sweep.
func (s *NotifyService) NotifySubscribers(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "NotifyService.NotifySubscribers"

	subs := s.store.active()
	now := s.now()

	slog.Debug("NotifySubscribers start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("subscribers", len(subs)))

	var sent, skipped, failed int
	for _, sub := range subs {
		if !sub.LastNotifiedAt.IsZero() && now.Sub(sub.LastNotifiedAt) < s.cfg.Notifications.MinInterval {
			skipped++
			continue
		}

		status, err := s.ledger.StatusForUser(ctx, sub.UserID)
		if err != nil {
			slog.Error("can't get valuation for subscriber", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", sub.UserID), slog.String("err", err.Error()))
			failed++
			continue
		}

		if status.Balance.IsZero() {
			skipped++
			continue
		}

		notice := model.PnLNotice{
			Valuation: status,
			PnLDelta:  status.UnrealizedProfit.Sub(sub.LastNotifiedPnL),
			First:     sub.LastNotifiedAt.IsZero(),
		}

		if err = s.sender.SendMessage(ctx, sub.ChatID, s.renderPnLNotice(notice)); err != nil {
			slog.Error("can't send notification", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", sub.ChatID), slog.String("err", err.Error()))
			failed++
			continue
		}

		s.store.markNotified(sub.UserID, status.UnrealizedProfit, status.LiveRate, now)
		sent++
	}

	slog.Info("notification sweep finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int("sent", sent), slog.Int("skipped", skipped), slog.Int("failed", failed))
	return nil
}

func (s *NotifyService) renderPnLNotice(notice model.PnLNotice) string {
	code := s.cfg.Currency.Code
	baseCode := s.cfg.Currency.BaseCode

	var b strings.Builder
	b.WriteString("📊 Ваш валютний портфель\n\n")
	b.WriteString(fmt.Sprintf("Баланс: %s %s\n", notice.Valuation.Balance.String(), code))
	b.WriteString(fmt.Sprintf("Собівартість: %s %s\n", notice.Valuation.CostBasis.StringFixed(2), baseCode))
	b.WriteString(fmt.Sprintf("Поточна вартість: %s %s (курс %s)\n", notice.Valuation.CurrentValue.StringFixed(2), baseCode, notice.Valuation.LiveRate.String()))
	b.WriteString(fmt.Sprintf("Нереалізований прибуток: %s %s\n", signed(notice.Valuation.UnrealizedProfit), baseCode))

	if !notice.First {
		b.WriteString(fmt.Sprintf("Зміна з минулого повідомлення: %s %s\n", signed(notice.PnLDelta), baseCode))
	}

	return b.String()
}

func signed(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}
