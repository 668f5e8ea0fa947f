package xlsxGenerator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/vbilyk/usd_tax_helper_bot/internal/model"
	"github.com/vbilyk/usd_tax_helper_bot/utils"
	"github.com/xuri/excelize/v2"
)

const (
	lotsSheet      = "Лоти"
	disposalsSheet = "Продажі"
)

type XLSXGenerator struct{}

func New() *XLSXGenerator {
	return &XLSXGenerator{}
}

func (g *XLSXGenerator) Generate(ctx context.Context, report model.TaxReport) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXGenerator.Generate"

	if len(report.Lots) == 0 && len(report.Disposals) == 0 {
		return nil, "", errors.New("empty report")
	}

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	if err := g.fillLotsSheet(f, report.Lots); err != nil {
		slog.Error("got error while filling lots sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	if err := g.fillDisposalsSheet(f, report.Disposals); err != nil {
		slog.Error("got error while filling disposals sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	// drop the default sheet
	if err := f.DeleteSheet("Sheet1"); err != nil {
		slog.Error("got error while deleting Sheet1", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func (g *XLSXGenerator) fillLotsSheet(f *excelize.File, lots []model.Lot) error {
	_, err := f.NewSheet(lotsSheet)
	if err != nil {
		return err
	}

	if err := g.writeBanner(f, lotsSheet, "A1", "E1", "Придбання валюти", "#cfe2f3"); err != nil {
		return err
	}

	_ = f.SetCellStr(lotsSheet, "A2", "дата")
	_ = f.SetCellStr(lotsSheet, "B2", "кількість")
	_ = f.SetCellStr(lotsSheet, "C2", "залишок")
	_ = f.SetCellStr(lotsSheet, "D2", "курс")
	_ = f.SetCellStr(lotsSheet, "E2", "собівартість")

	for i, lot := range lots {
		row := i + 3
		_ = f.SetCellStr(lotsSheet, fmt.Sprintf("A%d", row), utils.FormatDate(lot.AcquisitionDate))
		_ = f.SetCellValue(lotsSheet, fmt.Sprintf("B%d", row), lot.OriginalQuantity.InexactFloat64())
		_ = f.SetCellValue(lotsSheet, fmt.Sprintf("C%d", row), lot.RemainingQuantity.InexactFloat64())
		_ = f.SetCellValue(lotsSheet, fmt.Sprintf("D%d", row), lot.AcquisitionRate.InexactFloat64())
		_ = f.SetCellValue(lotsSheet, fmt.Sprintf("E%d", row), lot.CostBasis.InexactFloat64())
	}

	return nil
}

func (g *XLSXGenerator) fillDisposalsSheet(f *excelize.File, disposals []model.Disposal) error {
	_, err := f.NewSheet(disposalsSheet)
	if err != nil {
		return err
	}

	if err := g.writeBanner(f, disposalsSheet, "A1", "F1", "Продаж валюти", "#d9ead3"); err != nil {
		return err
	}

	_ = f.SetCellStr(disposalsSheet, "A2", "дата")
	_ = f.SetCellStr(disposalsSheet, "B2", "кількість")
	_ = f.SetCellStr(disposalsSheet, "C2", "курс")
	_ = f.SetCellStr(disposalsSheet, "D2", "дохід")
	_ = f.SetCellStr(disposalsSheet, "E2", "собівартість")
	_ = f.SetCellStr(disposalsSheet, "F2", "прибуток")

	totalProceeds, totalCostBasis, totalProfit := decimal.Zero, decimal.Zero, decimal.Zero
	row := 2
	for _, d := range disposals {
		row++
		_ = f.SetCellStr(disposalsSheet, fmt.Sprintf("A%d", row), utils.FormatDate(d.DisposalDate))
		_ = f.SetCellValue(disposalsSheet, fmt.Sprintf("B%d", row), d.Quantity.InexactFloat64())
		_ = f.SetCellValue(disposalsSheet, fmt.Sprintf("C%d", row), d.DisposalRate.InexactFloat64())
		_ = f.SetCellValue(disposalsSheet, fmt.Sprintf("D%d", row), d.Proceeds.InexactFloat64())
		_ = f.SetCellValue(disposalsSheet, fmt.Sprintf("E%d", row), d.CostBasis.InexactFloat64())
		_ = f.SetCellValue(disposalsSheet, fmt.Sprintf("F%d", row), d.Profit.InexactFloat64())

		totalProceeds = totalProceeds.Add(d.Proceeds)
		totalCostBasis = totalCostBasis.Add(d.CostBasis)
		totalProfit = totalProfit.Add(d.Profit)
	}

	// totals row for the declaration
	row += 2
	_ = f.SetCellStr(disposalsSheet, fmt.Sprintf("A%d", row), "разом")
	_ = f.SetCellValue(disposalsSheet, fmt.Sprintf("D%d", row), totalProceeds.InexactFloat64())
	_ = f.SetCellValue(disposalsSheet, fmt.Sprintf("E%d", row), totalCostBasis.InexactFloat64())
	_ = f.SetCellValue(disposalsSheet, fmt.Sprintf("F%d", row), totalProfit.InexactFloat64())

	return nil
}

func (g *XLSXGenerator) writeBanner(f *excelize.File, sheet, from, to, title, color string) error {
	if err := f.MergeCell(sheet, from, to); err != nil {
		return err
	}

	f.SetCellValue(sheet, from, title)

	styleID, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{color},
		},
	})
	if err != nil {
		return err
	}

	if err := f.SetCellStyle(sheet, from, to, styleID); err != nil {
		return fmt.Errorf("can't apply style: %w", err)
	}

	return nil
}
