package finance

import (
	"github.com/shopspring/decimal"

	"github.com/iliyamo/fleet-ledger/internal/model"
)

// Totals is the outcome of reconciling a journey's expense set.
type Totals struct {
	TotalExpenses decimal.Decimal // sum of cost rows
	TopUp         decimal.Decimal // sum of top_up rows
	HydInward     decimal.Decimal // sum of hyd_inward rows, reported only
	Balance       decimal.Decimal // pouch + TopUp − TotalExpenses
}

// Reconcile derives a journey's cached figures from its pouch and its
// complete expense set.
//
// Security is never part of the stored balance, whatever the journey
// status; it is surfaced by SecurityRefund and in fleet reporting.
// Inward revenue is excluded from the cost sum but does not move the
// balance either.
func Reconcile(pouch decimal.Decimal, expenses []model.Expense) Totals {
	t := Totals{
		TotalExpenses: decimal.Zero,
		TopUp:         decimal.Zero,
		HydInward:     decimal.Zero,
	}
	for _, e := range expenses {
		switch Classify(e.Category).Treatment {
		case TreatTopUp:
			t.TopUp = t.TopUp.Add(e.Amount)
		case TreatInward:
			t.HydInward = t.HydInward.Add(e.Amount)
		default:
			t.TotalExpenses = t.TotalExpenses.Add(e.Amount)
		}
	}
	t.Balance = pouch.Add(t.TopUp).Sub(t.TotalExpenses)
	return t
}

// Apply copies the cached figures onto the journey.
func (t Totals) Apply(j *model.Journey) {
	j.TotalExpenses = t.TotalExpenses
	j.Balance = t.Balance
}

// Matches reports whether the journey already carries these figures.
func (t Totals) Matches(j model.Journey) bool {
	return j.TotalExpenses.Equal(t.TotalExpenses) && j.Balance.Equal(t.Balance)
}

// SecurityRefund is the deposit credited back for a journey.  It only
// counts once the journey is completed.
func SecurityRefund(j model.Journey) decimal.Decimal {
	if j.Status == model.JourneyCompleted {
		return j.Security
	}
	return decimal.Zero
}
