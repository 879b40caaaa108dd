package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/iliyamo/fleet-ledger/internal/model"
)

func TestFinancialsWorkbook(t *testing.T) {
	ended := time.Date(2024, 3, 2, 18, 0, 0, 0, time.UTC)
	sum := model.FinancialSummary{
		Vehicle:          "MH12AB1234",
		Month:            "2024-03",
		JourneyRevenue:   decimal.RequireFromString("5000"),
		SecurityDeposits: decimal.RequireFromString("1000"),
		TotalRevenue:     decimal.RequireFromString("6300"),
		TotalExpenses:    decimal.RequireFromString("1000"),
		NetProfit:        decimal.RequireFromString("5300"),
		JourneyCount:     1,
	}
	journeys := []model.Journey{{
		ID:            7,
		DriverID:      3,
		LicensePlate:  "MH12AB1234",
		Destination:   "Hyderabad",
		Status:        model.JourneyCompleted,
		StartedAt:     time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC),
		EndedAt:       &ended,
		Pouch:         decimal.RequireFromString("5000"),
		Security:      decimal.RequireFromString("1000"),
		TotalExpenses: decimal.RequireFromString("1000"),
		Balance:       decimal.RequireFromString("4300.5"),
	}}

	f, err := Financials(sum, journeys)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}

	back, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer back.Close()

	sheets := back.GetSheetList()
	if len(sheets) != 2 || sheets[0] != SummarySheet || sheets[1] != JourneysSheet {
		t.Fatalf("sheets = %v", sheets)
	}
	checks := map[string]string{"A1": "Vehicle", "B1": "MH12AB1234", "B2": "2024-03", "B3": "1", "A13": "Net profit", "B13": "5300"}
	for cell, want := range checks {
		got, err := back.GetCellValue(SummarySheet, cell)
		if err != nil || got != want {
			t.Fatalf("Summary!%s = %q (%v), want %q", cell, got, err, want)
		}
	}

	rows, err := back.GetRows(JourneysSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0][0] != "ID" || rows[1][4] != "MH12AB1234" || rows[1][9] != "1000" || rows[1][11] != "4300.5" {
		t.Fatalf("journey rows = %v", rows)
	}
}

func TestFinancialsWorkbook_AllScopes(t *testing.T) {
	f, err := Financials(model.FinancialSummary{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := f.GetCellValue(SummarySheet, "B1"); got != "all vehicles" {
		t.Fatalf("vehicle scope = %q", got)
	}
	rows, _ := f.GetRows(JourneysSheet)
	if len(rows) != 1 {
		t.Fatalf("expected only headings, got %d rows", len(rows))
	}
}

func TestFilename(t *testing.T) {
	if got := Filename(model.FinancialSummary{}); got != "financials.xlsx" {
		t.Fatalf("got %s", got)
	}
	if got := Filename(model.FinancialSummary{Vehicle: "KA01", Month: "2024-01"}); got != "financials_KA01_2024-01.xlsx" {
		t.Fatalf("got %s", got)
	}
}
