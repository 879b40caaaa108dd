// Package report renders financial exports as Excel workbooks.
package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/iliyamo/fleet-ledger/internal/finance"
	"github.com/iliyamo/fleet-ledger/internal/model"
)

// Sheet names of the financial workbook.
const (
	SummarySheet  = "Summary"
	JourneysSheet = "Journeys"
)

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var journeyHeadings = []interface{}{
	"ID", "Started", "Ended", "Driver", "Vehicle", "Destination", "Status",
	"Pouch", "Security", "Security refund", "Total expenses", "Balance",
}

// Financials builds a workbook with the summary on one sheet and the
// journeys behind it on another.  Money is written as numbers so the
// sheet can be summed.
func Financials(sum model.FinancialSummary, journeys []model.Journey) (*excelize.File, error) {
	f := excelize.NewFile()
	// the default sheet becomes the summary and stays active
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(JourneysSheet); err != nil {
		return nil, err
	}

	scope := func(v, all string) string {
		if v == "" {
			return all
		}
		return v
	}
	rows := [][]interface{}{
		{"Vehicle", scope(sum.Vehicle, "all vehicles")},
		{"Month", scope(sum.Month, "all time")},
		{"Journeys", sum.JourneyCount},
		{"Journey revenue", sum.JourneyRevenue.InexactFloat64()},
		{"Security deposits", sum.SecurityDeposits.InexactFloat64()},
		{"HYD inward revenue", sum.HydInwardRevenue.InexactFloat64()},
		{"Top-up revenue", sum.TopUpRevenue.InexactFloat64()},
		{"Total revenue", sum.TotalRevenue.InexactFloat64()},
		{"Total expenses", sum.TotalExpenses.InexactFloat64()},
		{"Salary payments", sum.SalaryPayments.InexactFloat64()},
		{"Salary debts", sum.SalaryDebts.InexactFloat64()},
		{"EMI payments", sum.EmiPayments.InexactFloat64()},
		{"Net profit", sum.NetProfit.InexactFloat64()},
	}
	for i, row := range rows {
		if err := setRow(f, SummarySheet, i+1, row); err != nil {
			return nil, err
		}
	}

	if err := setRow(f, JourneysSheet, 1, journeyHeadings); err != nil {
		return nil, err
	}
	for i, j := range journeys {
		ended := ""
		if j.EndedAt != nil {
			ended = j.EndedAt.UTC().Format(time.RFC3339)
		}
		row := []interface{}{
			j.ID,
			j.StartedAt.UTC().Format(time.RFC3339),
			ended,
			j.DriverID,
			j.LicensePlate,
			j.Destination,
			string(j.Status),
			j.Pouch.InexactFloat64(),
			j.Security.InexactFloat64(),
			finance.SecurityRefund(j).InexactFloat64(),
			j.TotalExpenses.InexactFloat64(),
			j.Balance.InexactFloat64(),
		}
		if err := setRow(f, JourneysSheet, i+2, row); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func setRow(f *excelize.File, sheet string, rowNo int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNo)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// Filename names an export after its scope, e.g.
// financials_MH12AB1234_2024-03.xlsx.
func Filename(sum model.FinancialSummary) string {
	name := "financials"
	if sum.Vehicle != "" {
		name += "_" + sum.Vehicle
	}
	if sum.Month != "" {
		name += "_" + sum.Month
	}
	return fmt.Sprintf("%s.xlsx", name)
}
