package ledgerService

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/vbilyk/usd_tax_helper_bot/config"
	"github.com/vbilyk/usd_tax_helper_bot/data/repository"
	"github.com/vbilyk/usd_tax_helper_bot/internal/fifo"
	"github.com/vbilyk/usd_tax_helper_bot/internal/model"
	"github.com/vbilyk/usd_tax_helper_bot/internal/service"
	"github.com/vbilyk/usd_tax_helper_bot/utils"
)

type Repository interface {
	InsertUser(ctx context.Context, chatID int64) (userID int64, err error)
	GetUserID(ctx context.Context, chatID int64) (userID int64, err error)
	InsertLot(ctx context.Context, userID int64, lot model.Lot) (lotID int64, err error)
	GetOpenLots(ctx context.Context, userID int64) (lots []model.Lot, err error)
	GetBalance(ctx context.Context, userID int64) (balance decimal.Decimal, err error)
	ApplyLotConsumptions(ctx context.Context, userID int64, consumptions []model.LotConsumption) (err error)
	InsertDisposal(ctx context.Context, userID int64, disposal model.Disposal) (disposalID int64, err error)
	GetLotsByUserID(ctx context.Context, userID int64) (lots []model.Lot, err error)
	GetDisposalsByUserID(ctx context.Context, userID int64) (disposals []model.Disposal, err error)
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error
}

type RateSource interface {
	GetAcquisitionRate(ctx context.Context, date time.Time) (decimal.Decimal, error)
	GetDisposalRate(ctx context.Context, date time.Time) (decimal.Decimal, error)
	GetLiveRate(ctx context.Context) (decimal.Decimal, error)
}

type ReportGenerator interface {
	Generate(ctx context.Context, report model.TaxReport) (fileBytes []byte, fileExtension string, err error)
}

type CloudStorage interface {
	UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error)
}

type LedgerService struct {
	cfg             *config.Config
	repo            Repository
	rates           RateSource
	reportGenerator ReportGenerator
	cloudStorage    CloudStorage
	userLocks       *userLocks
}

func New(cfg *config.Config, repo Repository, rates RateSource, reportGenerator ReportGenerator, cloudStorage CloudStorage) *LedgerService {
	return &LedgerService{
		cfg:             cfg,
		repo:            repo,
		rates:           rates,
		reportGenerator: reportGenerator,
		cloudStorage:    cloudStorage,
		userLocks:       newUserLocks(),
	}
}

func (s *LedgerService) RegUser(ctx context.Context, chatID int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.RegUser"

	slog.Debug("RegUser start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("RegUser finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	_, err := s.repo.InsertUser(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil
		}
		slog.Error("got error from repo.InsertUser", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

// ResolveUser maps a chat to its ledger user, registering the chat on first
// contact. Any command can be the first one a user sends.
func (s *LedgerService) ResolveUser(ctx context.Context, chatID int64) (int64, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.ResolveUser"

	userID, err := s.repo.GetUserID(ctx, chatID)
	if err == nil {
		return userID, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		slog.Error("got error from repo.GetUserID", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return 0, err
	}

	userID, err = s.repo.InsertUser(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return s.repo.GetUserID(ctx, chatID)
		}
		slog.Error("got error from repo.InsertUser", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return 0, err
	}

	return userID, nil
}

// Acquire records an income of foreign currency as a new lot. The official
// rate for the acquisition date prices the lot's cost basis once and for all.
func (s *LedgerService) Acquire(ctx context.Context, chatID int64, quantity decimal.Decimal, date time.Time) (lot model.Lot, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.Acquire"

	slog.Debug("Acquire start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.String("quantity", quantity.String()))
	defer func() {
		slog.Debug("Acquire finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	if !quantity.IsPositive() {
		return model.Lot{}, service.ErrInvalidInput
	}

	date = utils.ToDate(date)

	userID, err := s.ResolveUser(ctx, chatID)
	if err != nil {
		return model.Lot{}, err
	}

	rate, err := s.rates.GetAcquisitionRate(ctx, date)
	if err != nil {
		return model.Lot{}, err
	}

	lot = model.Lot{
		UserID:            userID,
		OriginalQuantity:  quantity,
		RemainingQuantity: quantity,
		AcquisitionRate:   rate,
		CostBasis:         quantity.Mul(rate),
		AcquisitionDate:   date,
	}

	lock := s.userLocks.get(userID)
	lock.Lock()
	defer lock.Unlock()

	lot.LotID, err = s.repo.InsertLot(ctx, userID, lot)
	if err != nil {
		slog.Error("got error from repo.InsertLot", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Lot{}, err
	}

	return lot, nil
}

// Sell disposes of a quantity against the oldest open lots and records the
// realized result. The balance check, the FIFO plan and its application all
// happen under the user's lock: a concurrent sell must see either all of
// this sale or none of it.
func (s *LedgerService) Sell(ctx context.Context, chatID int64, quantity decimal.Decimal, date time.Time) (result model.DisposalResult, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.Sell"

	slog.Debug("Sell start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.String("quantity", quantity.String()))
	defer func() {
		slog.Debug("Sell finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	if !quantity.IsPositive() {
		return model.DisposalResult{}, service.ErrInvalidInput
	}

	date = utils.ToDate(date)

	userID, err := s.ResolveUser(ctx, chatID)
	if err != nil {
		return model.DisposalResult{}, err
	}

	lock := s.userLocks.get(userID)
	lock.Lock()
	defer lock.Unlock()

	balance, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		slog.Error("got error from repo.GetBalance", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.DisposalResult{}, err
	}

	if balance.LessThan(quantity) {
		slog.Warn("sell rejected, not enough balance", slog.String("rqID", rqID), slog.String("op", op), slog.String("balance", balance.String()), slog.String("quantity", quantity.String()))
		return model.DisposalResult{}, &service.InsufficientBalanceError{Balance: balance}
	}

	rate, err := s.rates.GetDisposalRate(ctx, date)
	if err != nil {
		return model.DisposalResult{}, err
	}

	lots, err := s.repo.GetOpenLots(ctx, userID)
	if err != nil {
		slog.Error("got error from repo.GetOpenLots", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.DisposalResult{}, err
	}

	plan, costBasisConsumed, err := fifo.Allocate(lots, quantity)
	if err != nil {
		if errors.Is(err, fifo.ErrInsufficient) {
			return model.DisposalResult{}, &service.InsufficientBalanceError{Balance: balance}
		}
		slog.Error("got error from fifo.Allocate", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.DisposalResult{}, err
	}

	proceeds := quantity.Mul(rate)
	disposal := model.Disposal{
		UserID:       userID,
		Quantity:     quantity,
		DisposalRate: rate,
		DisposalDate: date,
		Proceeds:     proceeds,
		CostBasis:    costBasisConsumed,
		Profit:       proceeds.Sub(costBasisConsumed),
	}

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.ApplyLotConsumptions(ctx, userID, plan); err != nil {
			return err
		}

		_, err := s.repo.InsertDisposal(ctx, userID, disposal)
		return err
	})
	if err != nil {
		slog.Error("disposal transaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.DisposalResult{}, err
	}

	newBalance, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		slog.Error("got error from repo.GetBalance", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.DisposalResult{}, err
	}

	return model.DisposalResult{
		Quantity:     disposal.Quantity,
		DisposalRate: disposal.DisposalRate,
		DisposalDate: disposal.DisposalDate,
		Proceeds:     disposal.Proceeds,
		CostBasis:    disposal.CostBasis,
		Profit:       disposal.Profit,
		NewBalance:   newBalance,
	}, nil
}

func (s *LedgerService) Status(ctx context.Context, chatID int64) (model.ValuationStatus, error) {
	userID, err := s.ResolveUser(ctx, chatID)
	if err != nil {
		return model.ValuationStatus{}, err
	}

	return s.StatusForUser(ctx, userID)
}

// StatusForUser values the user's open lots at the live rate. The unconsumed
// cost basis of a lot is the remaining share of its original quantity applied
// to its recorded basis, the same proportional formula disposals charge by.
func (s *LedgerService) StatusForUser(ctx context.Context, userID int64) (status model.ValuationStatus, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.StatusForUser"

	slog.Debug("StatusForUser start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	defer func() {
		slog.Debug("StatusForUser finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	}()

	lots, err := s.repo.GetOpenLots(ctx, userID)
	if err != nil {
		slog.Error("got error from repo.GetOpenLots", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.ValuationStatus{}, err
	}

	balance := lo.Reduce(lots, func(acc decimal.Decimal, lot model.Lot, _ int) decimal.Decimal {
		return acc.Add(lot.RemainingQuantity)
	}, decimal.Zero)

	if balance.IsZero() {
		return model.ValuationStatus{
			Balance:          decimal.Zero,
			CostBasis:        decimal.Zero,
			CurrentValue:     decimal.Zero,
			UnrealizedProfit: decimal.Zero,
			LiveRate:         decimal.Zero,
		}, nil
	}

	costBasis := lo.Reduce(lots, func(acc decimal.Decimal, lot model.Lot, _ int) decimal.Decimal {
		return acc.Add(lot.RemainingQuantity.Mul(lot.CostBasis).Div(lot.OriginalQuantity))
	}, decimal.Zero)

	liveRate, err := s.rates.GetLiveRate(ctx)
	if err != nil {
		return model.ValuationStatus{}, err
	}

	currentValue := balance.Mul(liveRate)

	return model.ValuationStatus{
		Balance:          balance,
		CostBasis:        costBasis,
		CurrentValue:     currentValue,
		UnrealizedProfit: currentValue.Sub(costBasis),
		LiveRate:         liveRate,
	}, nil
}

// GenerateTaxReport exports the user's full history to xlsx and returns a
// download link.
func (s *LedgerService) GenerateTaxReport(ctx context.Context, chatID int64) (downloadLink string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.GenerateTaxReport"

	slog.Debug("GenerateTaxReport start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("GenerateTaxReport finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	userID, err := s.ResolveUser(ctx, chatID)
	if err != nil {
		return "", err
	}

	lots, err := s.repo.GetLotsByUserID(ctx, userID)
	if err != nil {
		slog.Error("got error from repo.GetLotsByUserID", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	disposals, err := s.repo.GetDisposalsByUserID(ctx, userID)
	if err != nil {
		slog.Error("got error from repo.GetDisposalsByUserID", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	if len(lots) == 0 && len(disposals) == 0 {
		return "", service.ErrNothingToReport
	}

	fileBytes, fileExtension, err := s.reportGenerator.Generate(ctx, model.TaxReport{Lots: lots, Disposals: disposals})
	if err != nil {
		slog.Error("got error from reportGenerator.Generate", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	filename := fmt.Sprintf("%s_tax_report_%d_%s%s", strings.ToLower(s.cfg.Currency.Code), userID, utils.FormatDate(utils.Today()), fileExtension)

	downloadLink, err = s.cloudStorage.UploadFile(ctx, bytes.NewReader(fileBytes), filename)
	if err != nil {
		slog.Error("got error from cloudStorage.UploadFile", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	return downloadLink, nil
}
