package dbConverter

import (
	"github.com/vbilyk/usd_tax_helper_bot/internal/model"
	"github.com/vbilyk/usd_tax_helper_bot/internal/model/dbModel"
)

func ConvertLot(dbLot dbModel.Lot) model.Lot {
	return model.Lot{
		LotID:             dbLot.LotID,
		UserID:            dbLot.UserID,
		OriginalQuantity:  dbLot.OriginalQuantity,
		RemainingQuantity: dbLot.RemainingQuantity,
		AcquisitionRate:   dbLot.AcquisitionRate,
		CostBasis:         dbLot.CostBasis,
		AcquisitionDate:   dbLot.AcquisitionDate,
	}
}

func ConvertDisposal(dbDisposal dbModel.Disposal) model.Disposal {
	return model.Disposal{
		DisposalID:   dbDisposal.DisposalID,
		UserID:       dbDisposal.UserID,
		Quantity:     dbDisposal.Quantity,
		DisposalRate: dbDisposal.DisposalRate,
		DisposalDate: dbDisposal.DisposalDate,
		Proceeds:     dbDisposal.Proceeds,
		CostBasis:    dbDisposal.CostBasis,
		Profit:       dbDisposal.Profit,
	}
}
