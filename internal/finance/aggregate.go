package finance

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/fleet-ledger/internal/model"
)

// Filter narrows which rows take part in a summary.  It never changes
// which terms make up the profit formula.
type Filter struct {
	Vehicle         string // license plate, empty for the whole fleet
	Month           string // YYYY-MM matched on journey start, empty for all time
	IncludeFleetEmi bool   // sum EMI across every vehicle when Vehicle is empty
}

// MatchJourney reports whether j participates under f.
func (f Filter) MatchJourney(j model.Journey) bool {
	if f.Vehicle != "" && !strings.EqualFold(j.LicensePlate, f.Vehicle) {
		return false
	}
	if f.Month != "" && j.Month() != f.Month {
		return false
	}
	return true
}

// CountsEmi reports whether EMI installments enter the summary.
func (f Filter) CountsEmi() bool { return f.Vehicle != "" || f.IncludeFleetEmi }

// Snapshot is everything the aggregator reads.  Emi must already be
// scoped to the filtered vehicle by the loader; journeys and expenses
// may be wider than the filter and are narrowed here.
type Snapshot struct {
	Filter   Filter
	Journeys []model.Journey
	Expenses []model.Expense
	Salary   []model.SalaryPayment
	Emi      []model.EmiPayment
}

// Aggregate rolls a snapshot up into a financial summary.  An empty
// snapshot yields an all-zero summary.
func Aggregate(s Snapshot) model.FinancialSummary {
	sum := model.FinancialSummary{
		Vehicle:          s.Filter.Vehicle,
		Month:            s.Filter.Month,
		JourneyRevenue:   decimal.Zero,
		SecurityDeposits: decimal.Zero,
		HydInwardRevenue: decimal.Zero,
		TopUpRevenue:     decimal.Zero,
		TotalExpenses:    decimal.Zero,
		SalaryPayments:   decimal.Zero,
		SalaryDebts:      decimal.Zero,
		EmiPayments:      decimal.Zero,
	}

	inScope := make(map[uint64]struct{}, len(s.Journeys))
	for _, j := range s.Journeys {
		if !s.Filter.MatchJourney(j) {
			continue
		}
		inScope[j.ID] = struct{}{}
		sum.JourneyCount++
		sum.JourneyRevenue = sum.JourneyRevenue.Add(j.Pouch)
		sum.SecurityDeposits = sum.SecurityDeposits.Add(SecurityRefund(j))
		sum.TotalExpenses = sum.TotalExpenses.Add(j.TotalExpenses)
	}

	for _, e := range s.Expenses {
		if _, ok := inScope[e.JourneyID]; !ok {
			continue
		}
		switch Classify(e.Category).Treatment {
		case TreatTopUp:
			sum.TopUpRevenue = sum.TopUpRevenue.Add(e.Amount)
		case TreatInward:
			sum.HydInwardRevenue = sum.HydInwardRevenue.Add(e.Amount)
		}
	}

	for _, p := range s.Salary {
		switch {
		case p.Amount.IsPositive():
			sum.SalaryPayments = sum.SalaryPayments.Add(p.Amount)
		case p.Amount.IsNegative():
			sum.SalaryDebts = sum.SalaryDebts.Add(p.Amount.Abs())
		}
	}

	if s.Filter.CountsEmi() {
		for _, e := range s.Emi {
			if s.Filter.Month != "" && e.Month != s.Filter.Month {
				continue
			}
			sum.EmiPayments = sum.EmiPayments.Add(e.Amount)
		}
	}

	sum.TotalRevenue = sum.JourneyRevenue.
		Add(sum.SecurityDeposits).
		Add(sum.HydInwardRevenue).
		Add(sum.TopUpRevenue)
	sum.NetProfit = sum.TotalRevenue.
		Sub(sum.TotalExpenses).
		Sub(sum.SalaryPayments).
		Add(sum.SalaryDebts).
		Sub(sum.EmiPayments)
	return sum
}

// Months returns the distinct YYYY-MM buckets of the journeys matching
// f, ascending.
func Months(journeys []model.Journey, f Filter) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, j := range journeys {
		if !f.MatchJourney(j) {
			continue
		}
		m := j.Month()
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// ValidMonth reports whether s is a YYYY-MM month tag.
func ValidMonth(s string) bool {
	if len(s) != len(model.MonthLayout) {
		return false
	}
	_, err := time.Parse(model.MonthLayout, s)
	return err == nil
}
