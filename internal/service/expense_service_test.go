package service

import (
	"context"
	"errors"
	"testing"

	"github.com/iliyamo/fleet-ledger/internal/apperr"
	"github.com/iliyamo/fleet-ledger/internal/model"
	"github.com/iliyamo/fleet-ledger/internal/queue"
)

func TestCreateExpense_SecretFlagFollowsCategory(t *testing.T) {
	f := newFixture(t)
	j := f.start(t, f.driver, f.vehicle.ID, "1000", "0")

	toll := f.spend(t, f.driver, j.ID, "Toll", "120.50")
	if toll.Expense.Category != model.CategoryToll || !toll.Expense.IsCompanySecret {
		t.Fatalf("toll row = %+v", toll.Expense)
	}
	inward := f.spend(t, f.admin, j.ID, "Hyd Inward", "700")
	if inward.Expense.Category != model.CategoryHydInward || !inward.Expense.IsCompanySecret {
		t.Fatalf("inward row = %+v", inward.Expense)
	}
	tyre := f.spend(t, f.driver, j.ID, "tyre_change", "80")
	if tyre.Expense.IsCompanySecret {
		t.Fatal("unknown category must stay visible")
	}
	// inward is revenue and stays out of the cost sum and the balance
	if !tyre.Journey.TotalExpenses.Equal(d("200.50")) || !tyre.Journey.Balance.Equal(d("799.50")) {
		t.Fatalf("totals = %s/%s", tyre.Journey.TotalExpenses, tyre.Journey.Balance)
	}
	if tyre.Expense.CreatedBy != f.driver.UserID {
		t.Fatalf("created_by = %d", tyre.Expense.CreatedBy)
	}
}

func TestCreateExpense_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	j := f.start(t, f.driver, f.vehicle.ID, "1000", "0")
	long := make([]byte, maxDescription+1)
	for i := range long {
		long[i] = 'x'
	}
	cases := []struct {
		name  string
		in    ExpenseInput
		field string
	}{
		{"zero", ExpenseInput{Category: "fuel", Amount: "0"}, "amount"},
		{"negative", ExpenseInput{Category: "fuel", Amount: "-5"}, "amount"},
		{"three decimals", ExpenseInput{Category: "fuel", Amount: "1.234"}, "amount"},
		{"junk amount", ExpenseInput{Category: "fuel", Amount: "12abc"}, "amount"},
		{"missing category", ExpenseInput{Amount: "10"}, "category"},
		{"bad category", ExpenseInput{Category: "fuel!!", Amount: "10"}, "category"},
		{"long description", ExpenseInput{Category: "fuel", Amount: "10", Description: string(long)}, "description"},
	}
	for _, tc := range cases {
		_, err := f.expenses.Create(ctx, f.driver, j.ID, tc.in)
		var ae *apperr.Error
		if !apperr.Is(err, apperr.KindValidation) || !errors.As(err, &ae) || ae.Fields[tc.field] == "" {
			t.Fatalf("%s: got %v, want validation on %s", tc.name, err, tc.field)
		}
	}
	rows, _ := f.store.ListExpenses(ctx, j.ID)
	if len(rows) != 0 {
		t.Fatalf("invalid input stored %d rows", len(rows))
	}
}

func TestCreateExpense_Ownership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	j := f.start(t, f.driver, f.vehicle.ID, "1000", "0")

	if _, err := f.expenses.Create(ctx, f.other, j.ID, ExpenseInput{Category: "fuel", Amount: "10"}); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("other driver: %v", err)
	}
	if _, err := f.expenses.Create(ctx, f.driver, 4040, ExpenseInput{Category: "fuel", Amount: "10"}); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("missing journey: %v", err)
	}
	if _, err := f.journeys.Complete(ctx, f.driver, j.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.expenses.Create(ctx, f.driver, j.ID, ExpenseInput{Category: "fuel", Amount: "10"}); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("driver on completed journey: %v", err)
	}
	r := f.spend(t, f.admin, j.ID, "repair", "250")
	if !r.Journey.Balance.Equal(d("750")) {
		t.Fatalf("late admin correction balance = %s", r.Journey.Balance)
	}
}

func TestDriverCannotEditOrDeleteExpenses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	j := f.start(t, f.driver, f.vehicle.ID, "1000", "0")
	e := f.spend(t, f.driver, j.ID, "fuel", "100").Expense
	published := len(f.pub.types())

	if _, err := f.expenses.Update(ctx, f.driver, e.ID, ExpenseInput{Category: "fuel", Amount: "1"}); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("driver update: %v", err)
	}
	if _, err := f.expenses.Delete(ctx, f.driver, e.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("driver delete: %v", err)
	}
	// the role check comes first, even for ids that do not exist
	if _, err := f.expenses.Delete(ctx, f.driver, 999); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("driver delete of missing row: %v", err)
	}

	stored, err := f.store.GetExpense(ctx, e.ID)
	if err != nil || !stored.Amount.Equal(d("100")) {
		t.Fatalf("expense changed: %+v %v", stored, err)
	}
	jr, _ := f.store.GetJourney(ctx, j.ID)
	if !jr.Balance.Equal(d("900")) {
		t.Fatalf("balance = %s", jr.Balance)
	}
	if len(f.pub.types()) != published {
		t.Fatal("rejected calls published events")
	}
}

func TestAdminUpdateAndDeleteRecompute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	j := f.start(t, f.driver, f.vehicle.ID, "5000", "0")
	fuel := f.spend(t, f.driver, j.ID, "fuel", "800").Expense
	f.spend(t, f.driver, j.ID, "food", "200")

	up, err := f.expenses.Update(ctx, f.admin, fuel.ID, ExpenseInput{Category: "fuel", Amount: "500", Description: "receipt fixed"})
	if err != nil {
		t.Fatal(err)
	}
	if !up.Journey.Balance.Equal(d("4300")) || up.Expense.CreatedBy != f.driver.UserID || up.Expense.JourneyID != j.ID {
		t.Fatalf("after update: %+v", up)
	}

	up, err = f.expenses.Update(ctx, f.admin, fuel.ID, ExpenseInput{Category: "top_up", Amount: "500"})
	if err != nil {
		t.Fatal(err)
	}
	if !up.Journey.TotalExpenses.Equal(d("200")) || !up.Journey.Balance.Equal(d("5300")) {
		t.Fatalf("recategorized: %s/%s", up.Journey.TotalExpenses, up.Journey.Balance)
	}

	jr, err := f.expenses.Delete(ctx, f.admin, fuel.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !jr.Balance.Equal(d("4800")) {
		t.Fatalf("after delete balance = %s", jr.Balance)
	}
	if _, err := f.expenses.Delete(ctx, f.admin, fuel.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("second delete: %v", err)
	}

	got := f.pub.types()
	want := []queue.EventType{queue.ExpenseUpdated, queue.ExpenseUpdated, queue.ExpenseDeleted}
	tail := got[len(got)-len(want):]
	for i := range want {
		if tail[i] != want[i] {
			t.Fatalf("events = %v", got)
		}
	}
}

func TestListExpenses_HidesSecretsFromDrivers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	j := f.start(t, f.driver, f.vehicle.ID, "1000", "0")
	f.spend(t, f.driver, j.ID, "fuel", "100")
	f.spend(t, f.driver, j.ID, "toll", "50")
	f.spend(t, f.admin, j.ID, "hyd_inward", "300")

	mine, err := f.expenses.List(ctx, f.driver, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 || mine[0].Category != model.CategoryFuel {
		t.Fatalf("driver sees %+v", mine)
	}
	all, _ := f.expenses.List(ctx, f.admin, j.ID)
	if len(all) != 3 {
		t.Fatalf("admin sees %d rows", len(all))
	}
	if _, err := f.expenses.List(ctx, f.other, j.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("other driver: %v", err)
	}
}
