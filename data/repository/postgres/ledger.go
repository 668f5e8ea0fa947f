package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/shopspring/decimal"
	"github.com/vbilyk/usd_tax_helper_bot/data/repository"
	"github.com/vbilyk/usd_tax_helper_bot/internal/converter/dbConverter"
	"github.com/vbilyk/usd_tax_helper_bot/internal/model"
	"github.com/vbilyk/usd_tax_helper_bot/internal/model/dbModel"
	"github.com/vbilyk/usd_tax_helper_bot/utils"
)

func (r *Postgres) InsertUser(ctx context.Context, chatID int64) (userID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `INSERT INTO users(chat_id) VALUES($1) RETURNING user_id`

	slog.Debug("InsertUser start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("InsertUser failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertUser completed", slog.String("rqID", rqID))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(ctx, query, chatID).Scan(&userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return 0, repository.ErrAlreadyExists
			}
		}
		return 0, err
	}

	return userID, nil
}

func (r *Postgres) GetUserID(ctx context.Context, chatID int64) (userID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT user_id FROM users WHERE chat_id = $1`

	slog.Debug("GetUserID start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("GetUserID failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetUserID completed", slog.String("rqID", rqID))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(ctx, query, chatID).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, err
	}

	return userID, nil
}

func (r *Postgres) InsertLot(ctx context.Context, userID int64, lot model.Lot) (lotID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertLot"
	query := `
		INSERT INTO lots(user_id, original_quantity, remaining_quantity, acquisition_rate, cost_basis, acquisition_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING lot_id
		`

	slog.Debug(
		"InsertLot start",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.Int64("userID", userID),
		slog.Any("lot", lot),
		slog.String("query", query),
	)
	defer func() {
		if err != nil {
			slog.Error("InsertLot failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertLot completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(
		ctx,
		query,
		userID,
		lot.OriginalQuantity,
		lot.RemainingQuantity,
		lot.AcquisitionRate,
		lot.CostBasis,
		lot.AcquisitionDate,
	).Scan(&lotID)
	if err != nil {
		return 0, err
	}

	return lotID, nil
}

// GetOpenLots returns lots with anything left in them, oldest first.
// lot_id is serial, it breaks ties between lots acquired on the same date
// in insertion order.
func (r *Postgres) GetOpenLots(ctx context.Context, userID int64) (lots []model.Lot, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetOpenLots"
	query := `
		SELECT lot_id, user_id, original_quantity, remaining_quantity, acquisition_rate, cost_basis, acquisition_date, dt_create
		FROM lots
		WHERE user_id = $1
		AND remaining_quantity > 0
		ORDER BY acquisition_date, lot_id
		`

	slog.Debug("GetOpenLots start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("userID", userID))
	defer func() {
		if err != nil {
			slog.Error("GetOpenLots failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetOpenLots completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var lot dbModel.Lot
		err = rows.StructScan(&lot)
		if err != nil {
			return nil, err
		}
		lots = append(lots, dbConverter.ConvertLot(lot))
	}

	return lots, nil
}

func (r *Postgres) GetBalance(ctx context.Context, userID int64) (balance decimal.Decimal, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetBalance"
	query := `SELECT COALESCE(SUM(remaining_quantity), 0) FROM lots WHERE user_id = $1`

	slog.Debug("GetBalance start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("userID", userID))
	defer func() {
		if err != nil {
			slog.Error("GetBalance failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetBalance completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, userID).Scan(&balance)
	if err != nil {
		return decimal.Decimal{}, err
	}

	return balance, nil
}

// ApplyLotConsumptions debits consumed quantities from lots in one batch.
// The lots CHECK constraint rejects any debit that would push a remainder
// below zero, so a stale plan aborts the surrounding transaction instead of
// corrupting balances.
func (r *Postgres) ApplyLotConsumptions(ctx context.Context, userID int64, consumptions []model.LotConsumption) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.ApplyLotConsumptions"
	params := map[string]any{
		"userID":       userID,
		"consumptions": consumptions,
	}

	query := `
		UPDATE lots AS l
		SET remaining_quantity = l.remaining_quantity - u.consumed
		FROM UNNEST($1::bigint[], $2::decimal[]) AS u(lot_id, consumed)
		WHERE l.lot_id = u.lot_id AND l.user_id = $3
		`

	lotIDs := make([]int64, 0, len(consumptions))
	consumed := make([]decimal.Decimal, 0, len(consumptions))
	for _, c := range consumptions {
		lotIDs = append(lotIDs, c.LotID)
		consumed = append(consumed, c.Consumed)
	}

	slog.Debug("ApplyLotConsumptions start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("ApplyLotConsumptions failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("ApplyLotConsumptions completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, lotIDs, consumed, userID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if affected != int64(len(consumptions)) {
		return fmt.Errorf("expected to update %d lots, updated %d", len(consumptions), affected)
	}

	return nil
}

func (r *Postgres) InsertDisposal(ctx context.Context, userID int64, disposal model.Disposal) (disposalID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertDisposal"
	query := `
		INSERT INTO disposals(user_id, quantity, disposal_rate, disposal_date, proceeds, cost_basis, profit)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING disposal_id
		`

	slog.Debug(
		"InsertDisposal start",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.Int64("userID", userID),
		slog.Any("disposal", disposal),
		slog.String("query", query),
	)
	defer func() {
		if err != nil {
			slog.Error("InsertDisposal failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertDisposal completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(
		ctx,
		query,
		userID,
		disposal.Quantity,
		disposal.DisposalRate,
		disposal.DisposalDate,
		disposal.Proceeds,
		disposal.CostBasis,
		disposal.Profit,
	).Scan(&disposalID)
	if err != nil {
		return 0, err
	}

	return disposalID, nil
}

func (r *Postgres) GetLotsByUserID(ctx context.Context, userID int64) (lots []model.Lot, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetLotsByUserID"
	query := `
		SELECT lot_id, user_id, original_quantity, remaining_quantity, acquisition_rate, cost_basis, acquisition_date, dt_create
		FROM lots
		WHERE user_id = $1
		ORDER BY acquisition_date, lot_id
		`

	slog.Debug("GetLotsByUserID start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("userID", userID))
	defer func() {
		if err != nil {
			slog.Error("GetLotsByUserID failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetLotsByUserID completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var lot dbModel.Lot
		err = rows.StructScan(&lot)
		if err != nil {
			return nil, err
		}
		lots = append(lots, dbConverter.ConvertLot(lot))
	}

	return lots, nil
}

func (r *Postgres) GetDisposalsByUserID(ctx context.Context, userID int64) (disposals []model.Disposal, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetDisposalsByUserID"
	query := `
		SELECT disposal_id, user_id, quantity, disposal_rate, disposal_date, proceeds, cost_basis, profit, dt_create
		FROM disposals
		WHERE user_id = $1
		ORDER BY disposal_date, disposal_id
		`

	slog.Debug("GetDisposalsByUserID start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("userID", userID))
	defer func() {
		if err != nil {
			slog.Error("GetDisposalsByUserID failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetDisposalsByUserID completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var disposal dbModel.Disposal
		err = rows.StructScan(&disposal)
		if err != nil {
			return nil, err
		}
		disposals = append(disposals, dbConverter.ConvertDisposal(disposal))
	}

	return disposals, nil
}
