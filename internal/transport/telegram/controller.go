package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"

	"github.com/vbilyk/usd_tax_helper_bot/data/session"
	"github.com/vbilyk/usd_tax_helper_bot/internal/converter/telebotConverter"
	"github.com/vbilyk/usd_tax_helper_bot/internal/model"
	"github.com/vbilyk/usd_tax_helper_bot/internal/service"
	"github.com/vbilyk/usd_tax_helper_bot/utils"
)

const (
	internalErrMsg     = "щось пішло не так, спробуйте пізніше"
	invalidParamsMsg   = "Невірний формат. Надішліть суму та необов'язкову дату, напр.: 1000 2026-01-10"
	rateNotFoundMsg    = "Немає офіційного курсу на вказану дату, спробуйте іншу"
	rateUnavailableMsg = "Не вдалося отримати курс, спробуйте пізніше"

	incomePromptMsg = "Введіть суму надходження в USD, за бажанням з датою:\n1000 2026-01-10\nБез дати запишемо на сьогодні"
	sellPromptMsg   = "Введіть суму продажу в USD, за бажанням з датою:\n500 2026-02-15\nБез дати продаж рахується за сьогоднішнім курсом"

	startMsg = `Привіт! Я бот обліку валюти для податкової.

Зараховуйте надходження, фіксуйте продажі - я порахую прибуток за курсами НБУ та монобанку.

/income - зарахувати надходження
/sell - зафіксувати продаж
/status - стан портфеля
/report - звіт xlsx
/subscribe - сповіщення про прибуток
/unsubscribe - вимкнути сповіщення`
)

type LedgerService interface {
	RegUser(ctx context.Context, chatID int64) error
	Acquire(ctx context.Context, chatID int64, quantity decimal.Decimal, date time.Time) (model.Lot, error)
	Sell(ctx context.Context, chatID int64, quantity decimal.Decimal, date time.Time) (model.DisposalResult, error)
	Status(ctx context.Context, chatID int64) (model.ValuationStatus, error)
	GenerateTaxReport(ctx context.Context, chatID int64) (downloadLink string, err error)
}

type NotifyService interface {
	Subscribe(ctx context.Context, chatID int64) error
	Unsubscribe(ctx context.Context, chatID int64) (bool, error)
}

type Session interface {
	GetSession(ctx context.Context, key string) (model.Session, error)
	SetSession(ctx context.Context, key string, session model.Session) error
}

type Controller struct {
	ledgerService LedgerService
	notifyService NotifyService
	session       Session
}

func NewController(ledgerService LedgerService, notifyService NotifyService, session Session) *Controller {
	return &Controller{
		ledgerService: ledgerService,
		notifyService: notifyService,
		session:       session,
	}
}

func (ctrl *Controller) Start(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	_ = ctrl.ledgerService.RegUser(ctx, c.Chat().ID)
	return c.Reply(startMsg)
}

func (ctrl *Controller) IncomeInit(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)
	strChatID := strconv.FormatInt(c.Chat().ID, 10)

	chatSession, err := ctrl.session.GetSession(ctx, strChatID)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	chatSession.Action = model.ExpectingIncomeParams
	err = ctrl.session.SetSession(ctx, strChatID, chatSession)
	if err != nil {
		slog.Error("got error from session.SetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send(incomePromptMsg)
}

func (ctrl *Controller) SellInit(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)
	strChatID := strconv.FormatInt(c.Chat().ID, 10)

	chatSession, err := ctrl.session.GetSession(ctx, strChatID)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	chatSession.Action = model.ExpectingSellParams
	err = ctrl.session.SetSession(ctx, strChatID, chatSession)
	if err != nil {
		slog.Error("got error from session.SetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send(sellPromptMsg)
}

func (ctrl *Controller) ProcessIncome(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	quantity, date, err := parseOperationParams(c.Message().Text)
	if err != nil {
		// keep the action so the user can resend corrected params
		return c.Send(invalidParamsMsg)
	}

	lot, err := ctrl.ledgerService.Acquire(ctx, c.Chat().ID, quantity, date)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			return c.Send(invalidParamsMsg)
		case errors.Is(err, service.ErrRateNotFound):
			return c.Send(rateNotFoundMsg)
		case errors.Is(err, service.ErrRateUnavailable):
			ctrl.resetAction(ctx, c)
			return c.Send(rateUnavailableMsg)
		default:
			slog.Error("got error from ledgerService.Acquire", slog.String("rqID", rqID), slog.String("err", err.Error()))
			ctrl.resetAction(ctx, c)
			return c.Send(internalErrMsg)
		}
	}

	ctrl.resetAction(ctx, c)
	return c.Send(telebotConverter.LotResponse(lot))
}

func (ctrl *Controller) ProcessSell(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	quantity, date, err := parseOperationParams(c.Message().Text)
	if err != nil {
		return c.Send(invalidParamsMsg)
	}

	result, err := ctrl.ledgerService.Sell(ctx, c.Chat().ID, quantity, date)
	if err != nil {
		var balanceErr *service.InsufficientBalanceError
		switch {
		case errors.As(err, &balanceErr):
			// the user may retry with a smaller amount right away
			return c.Send(fmt.Sprintf("Недостатньо коштів: на балансі %s USD", balanceErr.Balance))
		case errors.Is(err, service.ErrInvalidInput):
			return c.Send(invalidParamsMsg)
		case errors.Is(err, service.ErrRateNotFound):
			return c.Send(rateNotFoundMsg)
		case errors.Is(err, service.ErrRateUnavailable):
			ctrl.resetAction(ctx, c)
			return c.Send(rateUnavailableMsg)
		default:
			slog.Error("got error from ledgerService.Sell", slog.String("rqID", rqID), slog.String("err", err.Error()))
			ctrl.resetAction(ctx, c)
			return c.Send(internalErrMsg)
		}
	}

	ctrl.resetAction(ctx, c)
	return c.Send(telebotConverter.DisposalResultResponse(result))
}

func (ctrl *Controller) Status(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	status, err := ctrl.ledgerService.Status(ctx, c.Chat().ID)
	if err != nil {
		if errors.Is(err, service.ErrRateUnavailable) || errors.Is(err, service.ErrRateNotFound) {
			return c.Send(rateUnavailableMsg)
		}
		slog.Error("got error from ledgerService.Status", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	text, markup := telebotConverter.ValuationStatusResponse(status)
	return c.Send(text, markup)
}

// RefreshStatus re-renders the status message in place on the inline button.
func (ctrl *Controller) RefreshStatus(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	status, err := ctrl.ledgerService.Status(ctx, c.Chat().ID)
	if err != nil {
		if errors.Is(err, service.ErrRateUnavailable) || errors.Is(err, service.ErrRateNotFound) {
			return c.Respond(&tele.CallbackResponse{Text: rateUnavailableMsg})
		}
		slog.Error("got error from ledgerService.Status", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Respond(&tele.CallbackResponse{Text: internalErrMsg})
	}

	_ = c.Respond()

	text, markup := telebotConverter.ValuationStatusResponse(status)
	return c.Edit(text, markup)
}

func (ctrl *Controller) Report(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	if c.Callback() != nil {
		_ = c.Respond()
	}

	// uploading takes a moment, show activity in the chat
	_ = c.Notify(tele.UploadingDocument)

	link, err := ctrl.ledgerService.GenerateTaxReport(ctx, c.Chat().ID)
	if err != nil {
		if errors.Is(err, service.ErrNothingToReport) {
			return c.Send("Історія порожня, звітувати немає про що")
		}
		slog.Error("got error from ledgerService.GenerateTaxReport", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send(telebotConverter.ReportLinkResponse(link))
}

func (ctrl *Controller) Subscribe(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	if err := ctrl.notifyService.Subscribe(ctx, c.Chat().ID); err != nil {
		slog.Error("got error from notifyService.Subscribe", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send("Підписку оформлено, надсилатиму стан портфеля за розкладом")
}

func (ctrl *Controller) Unsubscribe(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	cancelled, err := ctrl.notifyService.Unsubscribe(ctx, c.Chat().ID)
	if err != nil {
		slog.Error("got error from notifyService.Unsubscribe", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	if !cancelled {
		return c.Send("Ви й не були підписані")
	}

	return c.Send("Підписку скасовано")
}

func (ctrl *Controller) getSessionFromTeleCtxOrStorage(ctx context.Context, c tele.Context) (model.Session, error) {
	chatSession, ok := c.Get("session").(model.Session)
	if ok {
		return chatSession, nil
	}

	rqID := utils.GetRequestIDFromCtx(ctx)
	chatSession, err := ctrl.session.GetSession(ctx, strconv.FormatInt(c.Chat().ID, 10))
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		}
		return model.Session{}, err
	}
	return chatSession, nil
}

func (ctrl *Controller) resetAction(ctx context.Context, c tele.Context) {
	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return
	}

	chatSession.Action = model.DefaultAction
	_ = ctrl.session.SetSession(ctx, strconv.FormatInt(c.Chat().ID, 10), chatSession)
}

var errInvalidParams = errors.New("invalid operation params")

// parseOperationParams reads "<amount> [YYYY-MM-DD]". A missing date means
// today, future dates make no sense for a ledger and are rejected.
func parseOperationParams(text string) (decimal.Decimal, time.Time, error) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || len(fields) > 2 {
		return decimal.Decimal{}, time.Time{}, errInvalidParams
	}

	quantity, err := decimal.NewFromString(strings.ReplaceAll(fields[0], ",", "."))
	if err != nil || !quantity.IsPositive() {
		return decimal.Decimal{}, time.Time{}, errInvalidParams
	}

	date := utils.Today()
	if len(fields) == 2 {
		date, err = utils.ParseDate(fields[1])
		if err != nil {
			return decimal.Decimal{}, time.Time{}, errInvalidParams
		}
	}

	if date.After(utils.Today()) {
		return decimal.Decimal{}, time.Time{}, errInvalidParams
	}

	return quantity, date, nil
}
