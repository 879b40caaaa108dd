package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/fleet-ledger/internal/apperr"
	"github.com/iliyamo/fleet-ledger/internal/finance"
	"github.com/iliyamo/fleet-ledger/internal/ledger"
	"github.com/iliyamo/fleet-ledger/internal/model"
	"github.com/iliyamo/fleet-ledger/internal/queue"
)

// seedLedger books a completed February journey on the fixture vehicle,
// an active March journey on a second truck, salary in both months and a
// two-month EMI run on the fixture vehicle.
func seedLedger(t *testing.T, f *fixture) model.Vehicle {
	t.Helper()
	ctx := context.Background()
	truck := f.addVehicle(t, "KA01XY9999", "0")

	f.clock = time.Date(2024, 2, 10, 8, 0, 0, 0, time.UTC)
	feb := f.start(t, f.driver, f.vehicle.ID, "5000", "1000")
	f.spend(t, f.driver, feb.ID, "fuel", "800")
	f.spend(t, f.driver, feb.ID, "toll", "200")
	f.spend(t, f.admin, feb.ID, "top_up", "300")
	f.spend(t, f.admin, feb.ID, "hyd_inward", "700")
	if _, err := f.journeys.Complete(ctx, f.driver, feb.ID); err != nil {
		t.Fatal(err)
	}

	f.clock = testNow
	mar := f.start(t, f.other, truck.ID, "2000", "500")
	f.spend(t, f.other, mar.ID, "food", "100")

	if _, err := f.payroll.RecordSalary(ctx, f.admin, SalaryInput{UserID: f.driver.UserID, Amount: "15000", Month: "2024-02"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.payroll.RecordSalary(ctx, f.admin, SalaryInput{UserID: f.other.UserID, Amount: "-2000", Month: "2024-03"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.emi.Schedule(ctx, f.admin, ScheduleInput{VehicleID: f.vehicle.ID, Amount: "1000", FirstDue: "2024-02-05", Count: 2}); err != nil {
		t.Fatal(err)
	}
	return truck
}

func assertMoney(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(d(want)) {
		t.Fatalf("%s = %s, want %s", name, got, want)
	}
}

func TestSummary_FleetWide(t *testing.T) {
	f := newFixture(t)
	seedLedger(t, f)
	ctx := context.Background()

	s, err := f.finance.Summary(ctx, f.admin, finance.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	assertMoney(t, "journey revenue", s.JourneyRevenue, "7000")
	assertMoney(t, "security", s.SecurityDeposits, "1000")
	assertMoney(t, "hyd inward", s.HydInwardRevenue, "700")
	assertMoney(t, "top up", s.TopUpRevenue, "300")
	assertMoney(t, "total revenue", s.TotalRevenue, "9000")
	assertMoney(t, "total expenses", s.TotalExpenses, "1100")
	assertMoney(t, "salary", s.SalaryPayments, "15000")
	assertMoney(t, "debts", s.SalaryDebts, "2000")
	assertMoney(t, "emi", s.EmiPayments, "0")
	assertMoney(t, "net", s.NetProfit, "-5100")
	if s.JourneyCount != 2 {
		t.Fatalf("journey count = %d", s.JourneyCount)
	}

	withEmi, err := f.finance.Summary(ctx, f.admin, finance.Filter{IncludeFleetEmi: true})
	if err != nil {
		t.Fatal(err)
	}
	assertMoney(t, "fleet emi", withEmi.EmiPayments, "2000")
	assertMoney(t, "net with emi", withEmi.NetProfit, "-7100")
}

func TestSummary_VehicleAndMonthFilters(t *testing.T) {
	f := newFixture(t)
	seedLedger(t, f)
	ctx := context.Background()

	cases := []struct {
		name    string
		filter  finance.Filter
		revenue string
		emi     string
		net     string
		count   int
	}{
		{"vehicle", finance.Filter{Vehicle: "MH12AB1234"}, "7000", "2000", "-9000", 1},
		{"vehicle lower case", finance.Filter{Vehicle: " mh12ab1234 "}, "7000", "2000", "-9000", 1},
		{"vehicle february", finance.Filter{Vehicle: "MH12AB1234", Month: "2024-02"}, "7000", "1000", "-8000", 1},
		{"vehicle march", finance.Filter{Vehicle: "MH12AB1234", Month: "2024-03"}, "0", "1000", "-14000", 0},
		{"unknown plate", finance.Filter{Vehicle: "XX00NOPE"}, "0", "0", "-13000", 0},
		{"fleet march", finance.Filter{Month: "2024-03"}, "2000", "0", "-11100", 1},
	}
	for _, tc := range cases {
		s, err := f.finance.Summary(ctx, f.admin, tc.filter)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		assertMoney(t, tc.name+" revenue", s.TotalRevenue, tc.revenue)
		assertMoney(t, tc.name+" emi", s.EmiPayments, tc.emi)
		assertMoney(t, tc.name+" net", s.NetProfit, tc.net)
		if s.JourneyCount != tc.count {
			t.Fatalf("%s: count = %d", tc.name, s.JourneyCount)
		}
	}

	if _, err := f.finance.Summary(ctx, f.admin, finance.Filter{Month: "2024-13"}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("bad month: %v", err)
	}
	if _, err := f.finance.Summary(ctx, f.driver, finance.Filter{}); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("driver summary: %v", err)
	}
}

func TestSummary_EmptyLedgerIsZero(t *testing.T) {
	f := newFixture(t)
	s, err := f.finance.Summary(context.Background(), f.admin, finance.Filter{IncludeFleetEmi: true})
	if err != nil {
		t.Fatal(err)
	}
	for name, v := range map[string]decimal.Decimal{
		"revenue": s.TotalRevenue, "expenses": s.TotalExpenses, "salary": s.SalaryPayments,
		"emi": s.EmiPayments, "net": s.NetProfit,
	} {
		if !v.IsZero() {
			t.Fatalf("%s = %s on an empty ledger", name, v)
		}
	}
}

// salaryOutage fails salary reads, inside transactions too.
type salaryOutage struct{ ledger.Store }

func (s salaryOutage) ListSalaryPayments(context.Context, uint64) ([]model.SalaryPayment, error) {
	return nil, errors.New("salary table unavailable")
}

func (s salaryOutage) WithinTx(ctx context.Context, fn func(tx ledger.Store) error) error {
	return s.Store.WithinTx(ctx, func(tx ledger.Store) error { return fn(salaryOutage{tx}) })
}

func TestSummary_ReadFailureFailsWhole(t *testing.T) {
	f := newFixture(t)
	seedLedger(t, f)
	svc := NewFinanceService(Deps{Store: salaryOutage{f.store}, Logger: f.finance.logger})
	_, err := svc.Summary(context.Background(), f.admin, finance.Filter{})
	if apperr.KindOf(err) != apperr.KindPersistence || err == nil {
		t.Fatalf("got %v, want persistence error", err)
	}
}

func TestMonthly_SumsToVehicleWide(t *testing.T) {
	f := newFixture(t)
	seedLedger(t, f)
	ctx := context.Background()

	months, err := f.finance.Monthly(ctx, f.admin, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(months) != 2 || months[0].Month != "2024-02" || months[1].Month != "2024-03" {
		t.Fatalf("months = %+v", months)
	}
	whole, _ := f.finance.Summary(ctx, f.admin, finance.Filter{})
	revenue, expenses := decimal.Zero, decimal.Zero
	for _, m := range months {
		revenue = revenue.Add(m.TotalRevenue)
		expenses = expenses.Add(m.TotalExpenses)
	}
	assertMoney(t, "monthly revenue", revenue, whole.TotalRevenue.String())
	assertMoney(t, "monthly expenses", expenses, whole.TotalExpenses.String())

	one, err := f.finance.Monthly(ctx, f.admin, "MH12AB1234", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(one) != 1 || one[0].Vehicle != "MH12AB1234" {
		t.Fatalf("vehicle months = %+v", one)
	}
	assertMoney(t, "vehicle month emi", one[0].EmiPayments, "1000")
}

func TestExport_FiltersJourneys(t *testing.T) {
	f := newFixture(t)
	seedLedger(t, f)
	out, err := f.finance.Export(context.Background(), f.admin, finance.Filter{Vehicle: "KA01XY9999"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Journeys) != 1 || out.Journeys[0].LicensePlate != "KA01XY9999" {
		t.Fatalf("journeys = %+v", out.Journeys)
	}
	assertMoney(t, "export revenue", out.Summary.JourneyRevenue, "2000")
}

func TestDriverSummary_OnlyVisibleCosts(t *testing.T) {
	f := newFixture(t)
	seedLedger(t, f)
	ctx := context.Background()

	s, err := f.finance.DriverSummary(ctx, f.driver, f.other.UserID)
	if err != nil {
		t.Fatal(err)
	}
	if s.DriverID != f.driver.UserID || s.CompletedJourneys != 1 || s.ActiveJourneys != 0 {
		t.Fatalf("summary = %+v", s)
	}
	assertMoney(t, "pouch", s.TotalPouch, "5000")
	assertMoney(t, "visible expenses", s.VisibleExpenses, "800")
	assertMoney(t, "balance", s.TotalBalance, "4300")
	assertMoney(t, "refunds", s.SecurityRefunds, "1000")

	other, err := f.finance.DriverSummary(ctx, f.admin, f.other.UserID)
	if err != nil {
		t.Fatal(err)
	}
	if other.ActiveJourneys != 1 {
		t.Fatalf("admin view of other = %+v", other)
	}
	assertMoney(t, "active refunds", other.SecurityRefunds, "0")
}

func TestResetFinancialData(t *testing.T) {
	f := newFixture(t)
	truck := seedLedger(t, f)
	ctx := context.Background()

	if err := f.finance.ResetFinancialData(ctx, f.driver); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("driver reset: %v", err)
	}
	parked := f.addVehicle(t, "KA05MN4321", "0")
	status := string(model.VehicleMaintenance)
	if _, err := f.fleet.UpdateVehicle(ctx, f.admin, parked.ID, VehiclePatch{Status: &status}); err != nil {
		t.Fatal(err)
	}
	before := f.cache.n
	if err := f.finance.ResetFinancialData(ctx, f.admin); err != nil {
		t.Fatal(err)
	}
	journeys, _ := f.store.ListJourneys(ctx, ledger.JourneyFilter{})
	salary, _ := f.store.ListSalaryPayments(ctx, 0)
	if len(journeys) != 0 || len(salary) != 0 {
		t.Fatalf("left %d journeys, %d salary rows", len(journeys), len(salary))
	}
	v, _ := f.store.GetVehicle(ctx, truck.ID)
	if v.Status != model.VehicleAvailable {
		t.Fatalf("truck status = %s", v.Status)
	}
	v, _ = f.store.GetVehicle(ctx, parked.ID)
	if v.Status != model.VehicleAvailable {
		t.Fatalf("maintenance vehicle status after reset = %s", v.Status)
	}
	emi, _ := f.emi.List(ctx, f.admin, EmiListInput{})
	if len(emi) != 2 {
		t.Fatalf("financial reset touched EMI: %d rows", len(emi))
	}
	if f.cache.n != before+1 {
		t.Fatal("cache not invalidated")
	}
	got := f.pub.types()
	if got[len(got)-1] != queue.LedgerReset {
		t.Fatalf("events = %v", got)
	}
}

func TestFilters_MatchPlateAsTyped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	typed := "ka 01 ab 9999"
	v := f.addVehicle(t, typed, "1500")
	if v.LicensePlate != "KA01AB9999" {
		t.Fatalf("stored plate = %q", v.LicensePlate)
	}
	f.start(t, f.other, v.ID, "5000", "0")
	if _, err := f.emi.Schedule(ctx, f.admin, ScheduleInput{VehicleID: v.ID, FirstDue: "2024-03-10", Count: 1}); err != nil {
		t.Fatal(err)
	}

	s, err := f.finance.Summary(ctx, f.admin, finance.Filter{Vehicle: typed})
	if err != nil {
		t.Fatal(err)
	}
	if s.JourneyCount != 1 {
		t.Fatalf("count = %d, want 1", s.JourneyCount)
	}
	assertMoney(t, "journey revenue", s.JourneyRevenue, "5000")
	assertMoney(t, "emi", s.EmiPayments, "1500")

	months, err := f.finance.Monthly(ctx, f.admin, typed, false)
	if err != nil || len(months) != 1 {
		t.Fatalf("monthly = %d rows, %v", len(months), err)
	}
	assertMoney(t, "monthly revenue", months[0].JourneyRevenue, "5000")

	list, err := f.journeys.List(ctx, f.admin, JourneyListInput{Vehicle: typed})
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %d journeys, %v", len(list), err)
	}
}
