package finance

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/fleet-ledger/internal/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func exp(journeyID uint64, c model.Category, amount string) model.Expense {
	return model.Expense{JourneyID: journeyID, Category: c, Amount: d(amount)}
}

func TestReconcile_BalanceFormula(t *testing.T) {
	expenses := []model.Expense{
		exp(1, model.CategoryFuel, "800"),
		exp(1, model.CategoryToll, "200"),
		exp(1, model.CategoryTopUp, "300"),
	}
	got := Reconcile(d("5000"), expenses)
	if !got.TotalExpenses.Equal(d("1000")) {
		t.Fatalf("TotalExpenses = %s, want 1000", got.TotalExpenses)
	}
	if !got.Balance.Equal(d("4300")) {
		t.Fatalf("Balance = %s, want 4300", got.Balance)
	}
}

func TestReconcile_InwardExcludedFromBalance(t *testing.T) {
	expenses := []model.Expense{
		exp(1, model.CategoryFuel, "100.25"),
		exp(1, model.CategoryHydInward, "700"),
		exp(1, "tyres", "50.50"),
	}
	got := Reconcile(d("1000"), expenses)
	if !got.TotalExpenses.Equal(d("150.75")) {
		t.Fatalf("TotalExpenses = %s, want 150.75", got.TotalExpenses)
	}
	if !got.HydInward.Equal(d("700")) {
		t.Fatalf("HydInward = %s, want 700", got.HydInward)
	}
	if !got.Balance.Equal(d("849.25")) {
		t.Fatalf("Balance = %s, want 849.25", got.Balance)
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	expenses := []model.Expense{exp(1, model.CategoryFuel, "0.10"), exp(1, model.CategoryFuel, "0.20")}
	a := Reconcile(d("1"), expenses)
	b := Reconcile(d("1"), expenses)
	if !a.TotalExpenses.Equal(b.TotalExpenses) || !a.Balance.Equal(b.Balance) {
		t.Fatalf("recompute differs: %+v vs %+v", a, b)
	}
	if a.TotalExpenses.String() != "0.3" {
		t.Fatalf("decimal sum not exact: %s", a.TotalExpenses)
	}
	var j model.Journey
	a.Apply(&j)
	if !a.Matches(j) {
		t.Fatalf("Matches after Apply = false")
	}
}

func TestReconcile_NoExpenses(t *testing.T) {
	got := Reconcile(d("250"), nil)
	if !got.TotalExpenses.IsZero() || !got.Balance.Equal(d("250")) {
		t.Fatalf("got %+v", got)
	}
}

func TestSecurityRefund(t *testing.T) {
	j := model.Journey{Security: d("1000"), Status: model.JourneyActive}
	if !SecurityRefund(j).IsZero() {
		t.Fatalf("active journey refunded security")
	}
	j.Status = model.JourneyCancelled
	if !SecurityRefund(j).IsZero() {
		t.Fatalf("cancelled journey refunded security")
	}
	j.Status = model.JourneyCompleted
	if !SecurityRefund(j).Equal(d("1000")) {
		t.Fatalf("completed journey refund = %s", SecurityRefund(j))
	}
}
