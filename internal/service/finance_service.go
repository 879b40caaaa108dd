package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/fleet-ledger/internal/apperr"
	"github.com/iliyamo/fleet-ledger/internal/finance"
	"github.com/iliyamo/fleet-ledger/internal/ledger"
	"github.com/iliyamo/fleet-ledger/internal/model"
	"github.com/iliyamo/fleet-ledger/internal/queue"
)

// FinanceService loads ledger snapshots and rolls them up.
type FinanceService struct {
	base
}

func NewFinanceService(d Deps) *FinanceService {
	return &FinanceService{base: newBase(d)}
}

func normalizeFilter(f finance.Filter) (finance.Filter, error) {
	f.Vehicle = model.NormalizePlate(f.Vehicle)
	f.Month = strings.TrimSpace(f.Month)
	if f.Month != "" && !finance.ValidMonth(f.Month) {
		return f, apperr.Invalid("month", "must be YYYY-MM")
	}
	return f, nil
}

// load reads everything the aggregator needs in one transaction so the
// figures come from a single consistent view.  With forMonths set the
// month is not pushed down; callers slice per month themselves.
func (s *FinanceService) load(ctx context.Context, f finance.Filter, forMonths bool) (finance.Snapshot, error) {
	snap := finance.Snapshot{Filter: f}
	jf := ledger.JourneyFilter{LicensePlate: f.Vehicle, Month: f.Month}
	ef := ledger.EmiFilter{Month: f.Month}
	if forMonths {
		jf.Month, ef.Month = "", ""
	}
	err := s.store.WithinTx(ctx, func(tx ledger.Store) error {
		var err error
		if snap.Journeys, err = tx.ListJourneys(ctx, jf); err != nil {
			return err
		}
		if snap.Expenses, err = tx.ListExpensesByCategory(ctx, jf, finance.RevenueCategories()); err != nil {
			return err
		}
		if snap.Salary, err = tx.ListSalaryPayments(ctx, 0); err != nil {
			return err
		}
		switch {
		case f.Vehicle != "":
			v, err := tx.GetVehicleByPlate(ctx, f.Vehicle)
			if errors.Is(err, ledger.ErrNotFound) {
				return nil // unknown plate: no EMI to count
			}
			if err != nil {
				return err
			}
			ef.VehicleID = v.ID
			snap.Emi, err = tx.ListEmiPayments(ctx, ef)
			return err
		case f.IncludeFleetEmi:
			snap.Emi, err = tx.ListEmiPayments(ctx, ef)
			return err
		}
		return nil
	})
	if err != nil {
		return finance.Snapshot{}, s.fail("load", "load financial snapshot", f, apperr.Persistence("load financial snapshot", err))
	}
	return snap, nil
}

// Summary returns the fleet roll-up under f.  Admin only.
func (s *FinanceService) Summary(ctx context.Context, actor Actor, f finance.Filter) (model.FinancialSummary, error) {
	if err := actor.requireAdmin("view fleet financials"); err != nil {
		return model.FinancialSummary{}, err
	}
	f, err := normalizeFilter(f)
	if err != nil {
		return model.FinancialSummary{}, err
	}
	snap, err := s.load(ctx, f, false)
	if err != nil {
		return model.FinancialSummary{}, err
	}
	return finance.Aggregate(snap), nil
}

// Monthly returns one summary per month that has journeys for the vehicle
// (or the whole fleet when vehicle is empty), oldest first.
func (s *FinanceService) Monthly(ctx context.Context, actor Actor, vehicle string, includeFleetEmi bool) ([]model.FinancialSummary, error) {
	if err := actor.requireAdmin("view fleet financials"); err != nil {
		return nil, err
	}
	f, err := normalizeFilter(finance.Filter{Vehicle: vehicle, IncludeFleetEmi: includeFleetEmi})
	if err != nil {
		return nil, err
	}
	snap, err := s.load(ctx, f, true)
	if err != nil {
		return nil, err
	}
	months := finance.Months(snap.Journeys, f)
	out := make([]model.FinancialSummary, 0, len(months))
	for _, m := range months {
		per := snap
		per.Filter.Month = m
		out = append(out, finance.Aggregate(per))
	}
	return out, nil
}

// ExportData is everything a report needs: the summary and the journeys
// behind it.
type ExportData struct {
	Summary  model.FinancialSummary
	Journeys []model.Journey
}

// Export loads a summary with its journeys for report rendering.
func (s *FinanceService) Export(ctx context.Context, actor Actor, f finance.Filter) (*ExportData, error) {
	if err := actor.requireAdmin("export fleet financials"); err != nil {
		return nil, err
	}
	f, err := normalizeFilter(f)
	if err != nil {
		return nil, err
	}
	snap, err := s.load(ctx, f, false)
	if err != nil {
		return nil, err
	}
	journeys := make([]model.Journey, 0, len(snap.Journeys))
	for _, j := range snap.Journeys {
		if f.MatchJourney(j) {
			journeys = append(journeys, j)
		}
	}
	return &ExportData{Summary: finance.Aggregate(snap), Journeys: journeys}, nil
}

// DriverSummary is a driver's own roll-up.  Company-secret expenses are
// never counted, so hyd_inward stays invisible.  Drivers get their own
// figures whatever driverID says.
func (s *FinanceService) DriverSummary(ctx context.Context, actor Actor, driverID uint64) (*model.DriverSummary, error) {
	if !actor.IsAdmin() || driverID == 0 {
		driverID = actor.UserID
	}
	jf := ledger.JourneyFilter{DriverID: driverID}
	journeys, err := s.store.ListJourneys(ctx, jf)
	if err != nil {
		return nil, s.fail("DriverSummary", "list journeys", jf, apperr.Persistence("list journeys", err))
	}
	expenses, err := s.store.ListExpensesByCategory(ctx, jf, nil)
	if err != nil {
		return nil, s.fail("DriverSummary", "list expenses", jf, apperr.Persistence("list expenses", err))
	}
	out := &model.DriverSummary{
		DriverID:        driverID,
		TotalPouch:      decimal.Zero,
		VisibleExpenses: decimal.Zero,
		TotalBalance:    decimal.Zero,
		SecurityRefunds: decimal.Zero,
	}
	for _, j := range journeys {
		switch j.Status {
		case model.JourneyActive:
			out.ActiveJourneys++
		case model.JourneyCompleted:
			out.CompletedJourneys++
		}
		out.TotalPouch = out.TotalPouch.Add(j.Pouch)
		out.TotalBalance = out.TotalBalance.Add(j.Balance)
		out.SecurityRefunds = out.SecurityRefunds.Add(finance.SecurityRefund(j))
	}
	for _, e := range expenses {
		cl := finance.Classify(e.Category)
		if cl.DriverVisible() && cl.Treatment == finance.TreatCost {
			out.VisibleExpenses = out.VisibleExpenses.Add(e.Amount)
		}
	}
	return out, nil
}

// ResetFinancialData wipes journeys, their expenses and the salary ledger,
// and frees every vehicle.  Admin only; all or nothing.
func (s *FinanceService) ResetFinancialData(ctx context.Context, actor Actor) error {
	if err := actor.requireAdmin("reset financial data"); err != nil {
		return err
	}
	err := s.store.WithinTx(ctx, func(tx ledger.Store) error {
		if err := tx.DeleteAllJourneys(ctx); err != nil {
			return err
		}
		if err := tx.DeleteAllSalaryPayments(ctx); err != nil {
			return err
		}
		return tx.ResetVehicleStatuses(ctx)
	})
	if err != nil {
		return s.fail("ResetFinancialData", "reset financial data", nil, apperr.Persistence("reset financial data", err))
	}
	s.logger.WithField("actor_id", actor.UserID).Warn("financial data reset")
	s.events.emit(ctx, actor, queue.LedgerReset, 0, map[string]string{"scope": "financial"})
	s.invalidate(ctx, "ResetFinancialData")
	return nil
}
