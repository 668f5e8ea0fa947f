package ledgerService

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbilyk/usd_tax_helper_bot/config"
	"github.com/vbilyk/usd_tax_helper_bot/data/repository"
	"github.com/vbilyk/usd_tax_helper_bot/internal/model"
	"github.com/vbilyk/usd_tax_helper_bot/internal/service"
	"github.com/vbilyk/usd_tax_helper_bot/utils"
)

// fakeRepo keeps the ledger in memory. WithinTransaction snapshots the state
// and restores it when the callback fails, the same contract the postgres
// repository gives the service.
type fakeRepo struct {
	mu             sync.Mutex
	nextUserID     int64
	nextLotID      int64
	nextDisposalID int64
	users          map[int64]int64
	lots           map[int64]model.Lot
	disposals      []model.Disposal

	failInsertDisposal bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users: make(map[int64]int64),
		lots:  make(map[int64]model.Lot),
	}
}

func (f *fakeRepo) InsertUser(_ context.Context, chatID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.users[chatID]; ok {
		return 0, repository.ErrAlreadyExists
	}
	f.nextUserID++
	f.users[chatID] = f.nextUserID
	return f.nextUserID, nil
}

func (f *fakeRepo) GetUserID(_ context.Context, chatID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	userID, ok := f.users[chatID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return userID, nil
}

func (f *fakeRepo) InsertLot(_ context.Context, userID int64, lot model.Lot) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextLotID++
	lot.LotID = f.nextLotID
	lot.UserID = userID
	f.lots[lot.LotID] = lot
	return lot.LotID, nil
}

func (f *fakeRepo) GetOpenLots(_ context.Context, userID int64) ([]model.Lot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var lots []model.Lot
	for _, lot := range f.lots {
		if lot.UserID == userID && lot.RemainingQuantity.IsPositive() {
			lots = append(lots, lot)
		}
	}
	sort.Slice(lots, func(i, j int) bool {
		if !lots[i].AcquisitionDate.Equal(lots[j].AcquisitionDate) {
			return lots[i].AcquisitionDate.Before(lots[j].AcquisitionDate)
		}
		return lots[i].LotID < lots[j].LotID
	})
	return lots, nil
}

func (f *fakeRepo) GetBalance(_ context.Context, userID int64) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	balance := decimal.Zero
	for _, lot := range f.lots {
		if lot.UserID == userID {
			balance = balance.Add(lot.RemainingQuantity)
		}
	}
	return balance, nil
}

func (f *fakeRepo) ApplyLotConsumptions(_ context.Context, userID int64, consumptions []model.LotConsumption) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, c := range consumptions {
		lot, ok := f.lots[c.LotID]
		if !ok || lot.UserID != userID {
			return fmt.Errorf("lot %d not found", c.LotID)
		}
		remaining := lot.RemainingQuantity.Sub(c.Consumed)
		if remaining.IsNegative() {
			return fmt.Errorf("lot %d: remaining_quantity check constraint violated", c.LotID)
		}
		lot.RemainingQuantity = remaining
		f.lots[c.LotID] = lot
	}
	return nil
}

func (f *fakeRepo) InsertDisposal(_ context.Context, userID int64, disposal model.Disposal) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failInsertDisposal {
		return 0, errors.New("insert disposal failed")
	}
	f.nextDisposalID++
	disposal.DisposalID = f.nextDisposalID
	disposal.UserID = userID
	f.disposals = append(f.disposals, disposal)
	return disposal.DisposalID, nil
}

func (f *fakeRepo) GetLotsByUserID(_ context.Context, userID int64) ([]model.Lot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var lots []model.Lot
	for _, lot := range f.lots {
		if lot.UserID == userID {
			lots = append(lots, lot)
		}
	}
	sort.Slice(lots, func(i, j int) bool { return lots[i].LotID < lots[j].LotID })
	return lots, nil
}

func (f *fakeRepo) GetDisposalsByUserID(_ context.Context, userID int64) ([]model.Disposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var disposals []model.Disposal
	for _, d := range f.disposals {
		if d.UserID == userID {
			disposals = append(disposals, d)
		}
	}
	return disposals, nil
}

func (f *fakeRepo) WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error {
	f.mu.Lock()
	lotsBackup := make(map[int64]model.Lot, len(f.lots))
	for id, lot := range f.lots {
		lotsBackup[id] = lot
	}
	disposalsBackup := append([]model.Disposal(nil), f.disposals...)
	f.mu.Unlock()

	if err := tFunc(ctx); err != nil {
		f.mu.Lock()
		f.lots = lotsBackup
		f.disposals = disposalsBackup
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeRepo) lotByID(lotID int64) model.Lot {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.lots[lotID]
}

func (f *fakeRepo) disposalCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.disposals)
}

type fakeRates struct {
	mu        sync.Mutex
	official  map[string]decimal.Decimal
	live      decimal.Decimal
	err       error
	liveCalls int
}

func newFakeRates(live string) *fakeRates {
	return &fakeRates{
		official: make(map[string]decimal.Decimal),
		live:     decimal.RequireFromString(live),
	}
}

func (f *fakeRates) setOfficial(date time.Time, rate string) *fakeRates {
	f.official[utils.FormatDate(date)] = decimal.RequireFromString(rate)
	return f
}

func (f *fakeRates) GetAcquisitionRate(_ context.Context, date time.Time) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return decimal.Decimal{}, f.err
	}
	rate, ok := f.official[utils.FormatDate(date)]
	if !ok {
		return decimal.Decimal{}, service.ErrRateNotFound
	}
	return rate, nil
}

func (f *fakeRates) GetDisposalRate(ctx context.Context, date time.Time) (decimal.Decimal, error) {
	if utils.IsToday(date) {
		return f.GetLiveRate(ctx)
	}
	return f.GetAcquisitionRate(ctx, date)
}

func (f *fakeRates) GetLiveRate(_ context.Context) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.liveCalls++
	if f.err != nil {
		return decimal.Decimal{}, f.err
	}
	return f.live, nil
}

func (f *fakeRates) liveCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.liveCalls
}

type fakeReportGenerator struct {
	lastReport model.TaxReport
}

func (f *fakeReportGenerator) Generate(_ context.Context, report model.TaxReport) ([]byte, string, error) {
	f.lastReport = report
	return []byte("report"), ".xlsx", nil
}

type fakeCloudStorage struct {
	lastFilename string
}

func (f *fakeCloudStorage) UploadFile(_ context.Context, _ io.Reader, filename string) (string, error) {
	f.lastFilename = filename
	return "https://drive.google.com/uc?export=download&id=test", nil
}

func testConfig() *config.Config {
	return &config.Config{
		Currency: config.Currency{
			Code:            "USD",
			NumericCode:     840,
			BaseCode:        "UAH",
			BaseNumericCode: 980,
		},
	}
}

func date(s string) time.Time {
	d, err := utils.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestAcquire_CreatesLotAtOfficialRate(t *testing.T) {
	repo := newFakeRepo()
	rates := newFakeRates("42").setOfficial(date("2026-01-10"), "40")
	s := New(testConfig(), repo, rates, &fakeReportGenerator{}, &fakeCloudStorage{})

	lot, err := s.Acquire(context.Background(), 777, decimal.RequireFromString("100"), date("2026-01-10"))
	require.NoError(t, err)

	assert.True(t, lot.OriginalQuantity.Equal(decimal.RequireFromString("100")))
	assert.True(t, lot.RemainingQuantity.Equal(lot.OriginalQuantity), "a fresh lot is untouched")
	assert.True(t, lot.AcquisitionRate.Equal(decimal.RequireFromString("40")))
	assert.True(t, lot.CostBasis.Equal(decimal.RequireFromString("4000")), "cost basis is quantity times the official rate")
	assert.Equal(t, date("2026-01-10"), lot.AcquisitionDate)
	assert.NotZero(t, lot.LotID)

	balance, err := repo.GetBalance(context.Background(), lot.UserID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("100")))
}

func TestAcquire_RejectsNonPositiveQuantity(t *testing.T) {
	repo := newFakeRepo()
	rates := newFakeRates("42").setOfficial(utils.Today(), "40")
	s := New(testConfig(), repo, rates, &fakeReportGenerator{}, &fakeCloudStorage{})

	for _, quantity := range []string{"0", "-5"} {
		_, err := s.Acquire(context.Background(), 777, decimal.RequireFromString(quantity), utils.Today())
		require.ErrorIs(t, err, service.ErrInvalidInput, "quantity %s", quantity)
	}

	_, err := s.Sell(context.Background(), 777, decimal.Zero, utils.Today())
	require.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestSell_ConsumesOldestLotsFirst(t *testing.T) {
	repo := newFakeRepo()
	rates := newFakeRates("42").
		setOfficial(date("2026-01-01"), "40").
		setOfficial(date("2026-01-15"), "41")
	s := New(testConfig(), repo, rates, &fakeReportGenerator{}, &fakeCloudStorage{})

	first, err := s.Acquire(context.Background(), 777, decimal.RequireFromString("50"), date("2026-01-01"))
	require.NoError(t, err)
	second, err := s.Acquire(context.Background(), 777, decimal.RequireFromString("100"), date("2026-01-15"))
	require.NoError(t, err)

	result, err := s.Sell(context.Background(), 777, decimal.RequireFromString("75"), utils.Today())
	require.NoError(t, err)

	// 50*40 from the first lot plus 25*41 from the second
	assert.True(t, result.CostBasis.Equal(decimal.RequireFromString("3025")), "expected cost basis 3025, got %s", result.CostBasis)
	assert.True(t, result.Proceeds.Equal(decimal.RequireFromString("3150")), "75 at the live rate of 42")
	assert.True(t, result.Profit.Equal(decimal.RequireFromString("125")))
	assert.True(t, result.NewBalance.Equal(decimal.RequireFromString("75")))

	assert.True(t, repo.lotByID(first.LotID).RemainingQuantity.IsZero(), "oldest lot is drained first")
	assert.True(t, repo.lotByID(second.LotID).RemainingQuantity.Equal(decimal.RequireFromString("75")))

	// recorded basis and rate of the lots never change, only the remainder does
	assert.True(t, repo.lotByID(second.LotID).CostBasis.Equal(decimal.RequireFromString("4100")))
	assert.True(t, repo.lotByID(second.LotID).AcquisitionRate.Equal(decimal.RequireFromString("41")))
}

func TestSell_InsufficientBalanceLeavesLedgerUntouched(t *testing.T) {
	repo := newFakeRepo()
	rates := newFakeRates("42").setOfficial(date("2026-01-01"), "40")
	s := New(testConfig(), repo, rates, &fakeReportGenerator{}, &fakeCloudStorage{})

	lot, err := s.Acquire(context.Background(), 777, decimal.RequireFromString("50"), date("2026-01-01"))
	require.NoError(t, err)

	_, err = s.Sell(context.Background(), 777, decimal.RequireFromString("75"), utils.Today())

	var balanceErr *service.InsufficientBalanceError
	require.ErrorAs(t, err, &balanceErr)
	assert.True(t, balanceErr.Balance.Equal(decimal.RequireFromString("50")), "the error carries the current balance")

	assert.True(t, repo.lotByID(lot.LotID).RemainingQuantity.Equal(decimal.RequireFromString("50")))
	assert.Equal(t, 0, repo.disposalCount())
}

func TestSell_EmptyLedger(t *testing.T) {
	repo := newFakeRepo()
	s := New(testConfig(), repo, newFakeRates("42"), &fakeReportGenerator{}, &fakeCloudStorage{})

	_, err := s.Sell(context.Background(), 777, decimal.RequireFromString("10"), utils.Today())

	var balanceErr *service.InsufficientBalanceError
	require.ErrorAs(t, err, &balanceErr)
	assert.True(t, balanceErr.Balance.IsZero())
}

func TestSell_DisposalWriteFailureRollsBackLots(t *testing.T) {
	repo := newFakeRepo()
	rates := newFakeRates("42").setOfficial(date("2026-01-01"), "40")
	s := New(testConfig(), repo, rates, &fakeReportGenerator{}, &fakeCloudStorage{})

	lot, err := s.Acquire(context.Background(), 777, decimal.RequireFromString("100"), date("2026-01-01"))
	require.NoError(t, err)

	repo.failInsertDisposal = true
	_, err = s.Sell(context.Background(), 777, decimal.RequireFromString("30"), utils.Today())
	require.Error(t, err)

	assert.True(t, repo.lotByID(lot.LotID).RemainingQuantity.Equal(decimal.RequireFromString("100")),
		"a failed disposal must not leave partially consumed lots behind")
	assert.Equal(t, 0, repo.disposalCount())
}

func TestSell_RateFailurePreventsAnyChange(t *testing.T) {
	repo := newFakeRepo()
	rates := newFakeRates("42").setOfficial(date("2026-01-01"), "40")
	s := New(testConfig(), repo, rates, &fakeReportGenerator{}, &fakeCloudStorage{})

	lot, err := s.Acquire(context.Background(), 777, decimal.RequireFromString("100"), date("2026-01-01"))
	require.NoError(t, err)

	rates.mu.Lock()
	rates.err = service.ErrRateUnavailable
	rates.mu.Unlock()

	_, err = s.Sell(context.Background(), 777, decimal.RequireFromString("30"), utils.Today())
	require.ErrorIs(t, err, service.ErrRateUnavailable)

	assert.True(t, repo.lotByID(lot.LotID).RemainingQuantity.Equal(decimal.RequireFromString("100")))
	assert.Equal(t, 0, repo.disposalCount())
}

func TestSell_BalanceIsConservedAcrossOperations(t *testing.T) {
	repo := newFakeRepo()
	rates := newFakeRates("42").
		setOfficial(date("2026-01-01"), "40").
		setOfficial(date("2026-02-01"), "41").
		setOfficial(date("2026-03-01"), "40.5")
	s := New(testConfig(), repo, rates, &fakeReportGenerator{}, &fakeCloudStorage{})

	ctx := context.Background()
	_, err := s.Acquire(ctx, 777, decimal.RequireFromString("100"), date("2026-01-01"))
	require.NoError(t, err)
	_, err = s.Acquire(ctx, 777, decimal.RequireFromString("50.5"), date("2026-02-01"))
	require.NoError(t, err)
	_, err = s.Sell(ctx, 777, decimal.RequireFromString("30"), utils.Today())
	require.NoError(t, err)
	_, err = s.Sell(ctx, 777, decimal.RequireFromString("20.25"), utils.Today())
	require.NoError(t, err)
	_, err = s.Acquire(ctx, 777, decimal.RequireFromString("10"), date("2026-03-01"))
	require.NoError(t, err)

	userID, err := repo.GetUserID(ctx, 777)
	require.NoError(t, err)

	balance, err := repo.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("110.25")), "acquired minus sold, got %s", balance)

	// every disposed unit must be accounted for: originals = remainders + sold
	lots, err := repo.GetLotsByUserID(ctx, userID)
	require.NoError(t, err)
	disposals, err := repo.GetDisposalsByUserID(ctx, userID)
	require.NoError(t, err)

	totalOriginal, totalRemaining := decimal.Zero, decimal.Zero
	for _, lot := range lots {
		totalOriginal = totalOriginal.Add(lot.OriginalQuantity)
		totalRemaining = totalRemaining.Add(lot.RemainingQuantity)
	}
	totalSold := decimal.Zero
	for _, d := range disposals {
		totalSold = totalSold.Add(d.Quantity)
		assert.True(t, d.Profit.Equal(d.Proceeds.Sub(d.CostBasis)))
	}
	assert.True(t, totalOriginal.Equal(totalRemaining.Add(totalSold)))
}

func TestSell_ConcurrentSellsCannotOverdraw(t *testing.T) {
	repo := newFakeRepo()
	rates := newFakeRates("42").setOfficial(date("2026-01-01"), "40")
	s := New(testConfig(), repo, rates, &fakeReportGenerator{}, &fakeCloudStorage{})

	_, err := s.Acquire(context.Background(), 777, decimal.RequireFromString("100"), date("2026-01-01"))
	require.NoError(t, err)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Sell(context.Background(), 777, decimal.RequireFromString("60"), utils.Today())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, rejected int
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var balanceErr *service.InsufficientBalanceError
		require.ErrorAs(t, err, &balanceErr)
		rejected++
	}
	assert.Equal(t, 1, succeeded, "exactly one of the competing sells may win")
	assert.Equal(t, 1, rejected)

	userID, err := repo.GetUserID(context.Background(), 777)
	require.NoError(t, err)
	balance, err := repo.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("40")), "expected 40 left, got %s", balance)
}

func TestStatus_ValuesOpenLotsAtLiveRate(t *testing.T) {
	repo := newFakeRepo()
	rates := newFakeRates("42").setOfficial(date("2026-01-01"), "40")
	s := New(testConfig(), repo, rates, &fakeReportGenerator{}, &fakeCloudStorage{})

	_, err := s.Acquire(context.Background(), 777, decimal.RequireFromString("100"), date("2026-01-01"))
	require.NoError(t, err)

	status, err := s.Status(context.Background(), 777)
	require.NoError(t, err)
	assert.True(t, status.Balance.Equal(decimal.RequireFromString("100")))
	assert.True(t, status.CostBasis.Equal(decimal.RequireFromString("4000")))
	assert.True(t, status.CurrentValue.Equal(decimal.RequireFromString("4200")))
	assert.True(t, status.UnrealizedProfit.Equal(decimal.RequireFromString("200")))
	assert.True(t, status.LiveRate.Equal(decimal.RequireFromString("42")))

	// after a partial sale only the remaining share of the basis is counted
	_, err = s.Sell(context.Background(), 777, decimal.RequireFromString("25"), utils.Today())
	require.NoError(t, err)

	status, err = s.Status(context.Background(), 777)
	require.NoError(t, err)
	assert.True(t, status.Balance.Equal(decimal.RequireFromString("75")))
	assert.True(t, status.CostBasis.Equal(decimal.RequireFromString("3000")), "75 of 100 units keep 3000 of the 4000 basis")
	assert.True(t, status.CurrentValue.Equal(decimal.RequireFromString("3150")))
	assert.True(t, status.UnrealizedProfit.Equal(decimal.RequireFromString("150")))
}

func TestStatus_ZeroBalanceSkipsRateLookup(t *testing.T) {
	repo := newFakeRepo()
	rates := newFakeRates("42")
	s := New(testConfig(), repo, rates, &fakeReportGenerator{}, &fakeCloudStorage{})

	status, err := s.Status(context.Background(), 777)
	require.NoError(t, err)
	assert.True(t, status.Balance.IsZero())
	assert.True(t, status.CostBasis.IsZero())
	assert.True(t, status.CurrentValue.IsZero())
	assert.True(t, status.UnrealizedProfit.IsZero())
	assert.Equal(t, 0, rates.liveCallCount(), "an empty ledger needs no live rate")
}

func TestGenerateTaxReport_ExportsFullHistory(t *testing.T) {
	repo := newFakeRepo()
	rates := newFakeRates("42").setOfficial(date("2026-01-01"), "40")
	generator := &fakeReportGenerator{}
	storage := &fakeCloudStorage{}
	s := New(testConfig(), repo, rates, generator, storage)

	_, err := s.Acquire(context.Background(), 777, decimal.RequireFromString("100"), date("2026-01-01"))
	require.NoError(t, err)
	_, err = s.Sell(context.Background(), 777, decimal.RequireFromString("100"), utils.Today())
	require.NoError(t, err)

	link, err := s.GenerateTaxReport(context.Background(), 777)
	require.NoError(t, err)
	assert.Equal(t, "https://drive.google.com/uc?export=download&id=test", link)

	// fully consumed lots stay in the report, unlike in the status view
	assert.Len(t, generator.lastReport.Lots, 1)
	assert.Len(t, generator.lastReport.Disposals, 1)
	assert.True(t, strings.HasPrefix(storage.lastFilename, "usd_tax_report_"))
	assert.True(t, strings.HasSuffix(storage.lastFilename, ".xlsx"))
}

func TestGenerateTaxReport_EmptyHistory(t *testing.T) {
	s := New(testConfig(), newFakeRepo(), newFakeRates("42"), &fakeReportGenerator{}, &fakeCloudStorage{})

	_, err := s.GenerateTaxReport(context.Background(), 777)
	require.ErrorIs(t, err, service.ErrNothingToReport)
}
