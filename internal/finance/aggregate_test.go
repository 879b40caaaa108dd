package finance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/fleet-ledger/internal/model"
)

func journey(id uint64, plate, month string, status model.JourneyStatus, pouch, security, total string) model.Journey {
	start, _ := time.Parse(model.MonthLayout, month)
	return model.Journey{
		ID:            id,
		LicensePlate:  plate,
		Status:        status,
		StartedAt:     start.Add(36 * time.Hour),
		Pouch:         d(pouch),
		Security:      d(security),
		TotalExpenses: d(total),
	}
}

func fixture() Snapshot {
	return Snapshot{
		Journeys: []model.Journey{
			journey(1, "KA-01", "2025-01", model.JourneyCompleted, "5000", "1000", "1000"),
			journey(2, "KA-01", "2025-02", model.JourneyActive, "3000", "500", "200"),
			journey(3, "TN-09", "2025-01", model.JourneyCompleted, "4000", "800", "600"),
			journey(4, "KA-01", "2025-02", model.JourneyCancelled, "100", "50", "0"),
		},
		Expenses: []model.Expense{
			exp(1, model.CategoryFuel, "800"),
			exp(1, model.CategoryTopUp, "300"),
			exp(1, model.CategoryHydInward, "1200"),
			exp(2, model.CategoryTopUp, "150"),
			exp(3, model.CategoryHydInward, "400"),
		},
		Salary: []model.SalaryPayment{
			{Amount: d("2000")},
			{Amount: d("-500")},
		},
		Emi: []model.EmiPayment{
			{Amount: d("900"), Month: "2025-01"},
			{Amount: d("900"), Month: "2025-02"},
		},
	}
}

func TestAggregate_Empty(t *testing.T) {
	got := Aggregate(Snapshot{})
	for name, v := range map[string]decimal.Decimal{
		"journey_revenue": got.JourneyRevenue, "security": got.SecurityDeposits,
		"inward": got.HydInwardRevenue, "top_up": got.TopUpRevenue, "revenue": got.TotalRevenue,
		"expenses": got.TotalExpenses, "salary": got.SalaryPayments, "debts": got.SalaryDebts,
		"emi": got.EmiPayments, "profit": got.NetProfit,
	} {
		if !v.IsZero() {
			t.Fatalf("%s = %s on empty ledger", name, v)
		}
	}
}

func TestAggregate_Fleet(t *testing.T) {
	got := Aggregate(fixture())
	want := map[string]string{
		"journey_revenue": "12100",
		"security":        "1800",
		"inward":          "1600",
		"top_up":          "450",
		"revenue":         "15950",
		"expenses":        "1800",
		"salary":          "2000",
		"debts":           "500",
		"emi":             "0",
		"profit":          "12650",
	}
	have := map[string]decimal.Decimal{
		"journey_revenue": got.JourneyRevenue, "security": got.SecurityDeposits,
		"inward": got.HydInwardRevenue, "top_up": got.TopUpRevenue, "revenue": got.TotalRevenue,
		"expenses": got.TotalExpenses, "salary": got.SalaryPayments, "debts": got.SalaryDebts,
		"emi": got.EmiPayments, "profit": got.NetProfit,
	}
	for k, w := range want {
		if !have[k].Equal(d(w)) {
			t.Fatalf("%s = %s, want %s", k, have[k], w)
		}
	}
	if got.JourneyCount != 4 {
		t.Fatalf("JourneyCount = %d", got.JourneyCount)
	}
}

func TestAggregate_FleetEmiOptIn(t *testing.T) {
	s := fixture()
	s.Filter.IncludeFleetEmi = true
	if got := Aggregate(s); !got.EmiPayments.Equal(d("1800")) {
		t.Fatalf("fleet EMI = %s", got.EmiPayments)
	}
}

func TestAggregate_VehicleFilterMatchesMonthlySum(t *testing.T) {
	s := fixture()
	s.Filter = Filter{Vehicle: "ka-01"}
	whole := Aggregate(s)
	if !whole.EmiPayments.Equal(d("1800")) {
		t.Fatalf("vehicle EMI = %s", whole.EmiPayments)
	}

	months := Months(s.Journeys, s.Filter)
	if len(months) != 2 || months[0] != "2025-01" || months[1] != "2025-02" {
		t.Fatalf("Months = %v", months)
	}
	total := model.FinancialSummary{}
	for _, m := range months {
		part := s
		part.Filter = Filter{Vehicle: "KA-01", Month: m}
		p := Aggregate(part)
		total.JourneyRevenue = total.JourneyRevenue.Add(p.JourneyRevenue)
		total.SecurityDeposits = total.SecurityDeposits.Add(p.SecurityDeposits)
		total.HydInwardRevenue = total.HydInwardRevenue.Add(p.HydInwardRevenue)
		total.TopUpRevenue = total.TopUpRevenue.Add(p.TopUpRevenue)
		total.TotalRevenue = total.TotalRevenue.Add(p.TotalRevenue)
		total.TotalExpenses = total.TotalExpenses.Add(p.TotalExpenses)
		total.EmiPayments = total.EmiPayments.Add(p.EmiPayments)
		total.JourneyCount += p.JourneyCount
	}
	checks := []struct {
		name        string
		whole, part decimal.Decimal
	}{
		{"journey_revenue", whole.JourneyRevenue, total.JourneyRevenue},
		{"security", whole.SecurityDeposits, total.SecurityDeposits},
		{"inward", whole.HydInwardRevenue, total.HydInwardRevenue},
		{"top_up", whole.TopUpRevenue, total.TopUpRevenue},
		{"revenue", whole.TotalRevenue, total.TotalRevenue},
		{"expenses", whole.TotalExpenses, total.TotalExpenses},
		{"emi", whole.EmiPayments, total.EmiPayments},
	}
	for _, c := range checks {
		if !c.whole.Equal(c.part) {
			t.Fatalf("%s: vehicle-wide %s != monthly sum %s", c.name, c.whole, c.part)
		}
	}
	if whole.JourneyCount != total.JourneyCount {
		t.Fatalf("journey count %d != %d", whole.JourneyCount, total.JourneyCount)
	}
}

func TestAggregate_SalarySign(t *testing.T) {
	base := fixture()
	base.Salary = nil
	without := Aggregate(base)

	withDebt := base
	withDebt.Salary = []model.SalaryPayment{{Amount: d("-500")}}
	if diff := Aggregate(withDebt).NetProfit.Sub(without.NetProfit); !diff.Equal(d("500")) {
		t.Fatalf("debt moved profit by %s, want +500", diff)
	}

	withPay := base
	withPay.Salary = []model.SalaryPayment{{Amount: d("500")}}
	if diff := Aggregate(withPay).NetProfit.Sub(without.NetProfit); !diff.Equal(d("-500")) {
		t.Fatalf("payment moved profit by %s, want -500", diff)
	}
}

func TestValidMonth(t *testing.T) {
	for in, want := range map[string]bool{"2025-01": true, "2025-13": false, "2025-1": false, "": false, "25-01-01": false} {
		if ValidMonth(in) != want {
			t.Fatalf("ValidMonth(%q) = %v", in, !want)
		}
	}
}
