package telebotConverter

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/vbilyk/usd_tax_helper_bot/internal/model"
	"github.com/vbilyk/usd_tax_helper_bot/internal/model/tg/tgCallback"
	"github.com/vbilyk/usd_tax_helper_bot/utils"
)

func LotResponse(lot model.Lot) string {
	var sb strings.Builder

	sb.WriteString("✅ Надходження зараховано\n\n")
	sb.WriteString(fmt.Sprintf("Дата: %s\n", utils.FormatDate(lot.AcquisitionDate)))
	sb.WriteString(fmt.Sprintf("Кількість: %s USD\n", lot.OriginalQuantity.String()))
	sb.WriteString(fmt.Sprintf("Курс НБУ: %s\n", lot.AcquisitionRate.String()))
	sb.WriteString(fmt.Sprintf("Собівартість: %s UAH\n", lot.CostBasis.StringFixed(2)))

	return sb.String()
}

func DisposalResultResponse(result model.DisposalResult) string {
	var sb strings.Builder

	sb.WriteString("✅ Продаж зафіксовано\n\n")
	sb.WriteString(fmt.Sprintf("Дата: %s\n", utils.FormatDate(result.DisposalDate)))
	sb.WriteString(fmt.Sprintf("Кількість: %s USD\n", result.Quantity.String()))
	sb.WriteString(fmt.Sprintf("Курс: %s\n", result.DisposalRate.String()))
	sb.WriteString(fmt.Sprintf("Дохід: %s UAH\n", result.Proceeds.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("Собівартість: %s UAH\n", result.CostBasis.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("Прибуток: %s UAH\n\n", result.Profit.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("Залишок: %s USD\n", result.NewBalance.String()))

	return sb.String()
}

func ValuationStatusResponse(status model.ValuationStatus) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}

	var sb strings.Builder

	sb.WriteString("📊 Ваш валютний портфель\n\n")
	sb.WriteString(fmt.Sprintf("Баланс: %s USD\n", status.Balance.String()))
	if !status.Balance.IsZero() {
		sb.WriteString(fmt.Sprintf("Собівартість: %s UAH\n", status.CostBasis.StringFixed(2)))
		sb.WriteString(fmt.Sprintf("Поточна вартість: %s UAH (курс %s)\n", status.CurrentValue.StringFixed(2), status.LiveRate.String()))
		sb.WriteString(fmt.Sprintf("Нереалізований прибуток: %s UAH\n", status.UnrealizedProfit.StringFixed(2)))
	}

	refreshBtn := markup.Data("🔄 Оновити", tgCallback.RefreshStatus)
	reportBtn := markup.Data("📄 Звіт", tgCallback.GetReport)
	markup.Inline(markup.Row(refreshBtn, reportBtn))

	return sb.String(), markup
}

// ReportLinkResponse mentions that the link is temporary: old report files
// get cleaned up from the drive on schedule.
func ReportLinkResponse(link string) string {
	return fmt.Sprintf("📄 Звіт готовий, посилання діятиме обмежений час:\n%s", link)
}
