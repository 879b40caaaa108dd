package service

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/fleet-ledger/internal/apperr"
	"github.com/iliyamo/fleet-ledger/internal/finance"
	"github.com/iliyamo/fleet-ledger/internal/ledger"
	"github.com/iliyamo/fleet-ledger/internal/model"
	"github.com/iliyamo/fleet-ledger/internal/queue"
)

// EmiService manages vehicle loan installments.
type EmiService struct {
	base
}

func NewEmiService(d Deps) *EmiService {
	return &EmiService{base: newBase(d)}
}

// DateLayout is the wire format of due dates.
const DateLayout = "2006-01-02"

const maxInstallments = 120

// ScheduleInput describes a run of monthly installments.  An empty
// Amount uses the vehicle's configured monthly EMI.
type ScheduleInput struct {
	VehicleID uint64
	Amount    string
	FirstDue  string
	Count     int
}

// dueDate returns the due date i months after first, clamped to the end
// of shorter months so Jan 31 is followed by Feb 28/29.
func dueDate(first time.Time, i int) time.Time {
	y, m, d := first.Date()
	target := time.Date(y, m+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
	last := target.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d, 0, 0, 0, 0, time.UTC)
}

// Schedule creates Count pending installments, one per month.  Admin only.
func (s *EmiService) Schedule(ctx context.Context, actor Actor, in ScheduleInput) ([]model.EmiPayment, error) {
	if err := actor.requireAdmin("schedule EMI"); err != nil {
		return nil, err
	}
	bad := map[string]string{}
	if in.VehicleID == 0 {
		bad["vehicle_id"] = "required"
	}
	if in.Count < 1 || in.Count > maxInstallments {
		bad["count"] = "must be between 1 and 120"
	}
	first, err := time.Parse(DateLayout, strings.TrimSpace(in.FirstDue))
	if err != nil {
		bad["first_due"] = "must be YYYY-MM-DD"
	}
	amount, amountErr := finance.ParseAmount(in.Amount)
	if strings.TrimSpace(in.Amount) != "" && amountErr != nil {
		bad["amount"] = amountErr.Error()
	}
	if len(bad) > 0 {
		return nil, apperr.Validation(bad)
	}

	var out []model.EmiPayment
	err = s.store.WithinTx(ctx, func(tx ledger.Store) error {
		v, err := tx.GetVehicle(ctx, in.VehicleID)
		if err != nil {
			return apperr.FromStore("load vehicle", "vehicle", err)
		}
		if amountErr != nil {
			if !v.MonthlyEmi.IsPositive() {
				return apperr.Invalid("amount", "required when the vehicle has no monthly EMI")
			}
			amount = v.MonthlyEmi
		}
		out = make([]model.EmiPayment, in.Count)
		for i := range out {
			due := dueDate(first, i)
			out[i] = model.EmiPayment{
				VehicleID: v.ID,
				Amount:    amount,
				DueDate:   due,
				Month:     due.Format(model.MonthLayout),
				Status:    model.EmiPending,
			}
		}
		if err := tx.CreateEmiPayments(ctx, out); err != nil {
			return apperr.FromStore("create EMI schedule", "vehicle", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("Schedule", "schedule EMI", in, err)
	}
	s.events.emit(ctx, actor, queue.EmiScheduled, 0, map[string]string{
		"vehicle_id": u64(in.VehicleID),
		"amount":     amount.StringFixed(2),
		"first_due":  first.Format(DateLayout),
		"count":      u64(uint64(in.Count)),
	})
	return out, nil
}

// MarkPaid moves a pending installment to paid.  Anything already paid
// is a conflict.  Admin only.
func (s *EmiService) MarkPaid(ctx context.Context, actor Actor, id uint64) (*model.EmiPayment, error) {
	if err := actor.requireAdmin("record EMI payments"); err != nil {
		return nil, err
	}
	var out *model.EmiPayment
	err := s.store.WithinTx(ctx, func(tx ledger.Store) error {
		e, err := tx.GetEmiPayment(ctx, id)
		if err != nil {
			return apperr.FromStore("load EMI", "EMI installment", err)
		}
		if e.Status != model.EmiPending {
			return apperr.Conflict("EMI installment is already " + string(e.Status))
		}
		now := s.now()
		if err := tx.MarkEmiPaid(ctx, id, now); err != nil {
			return apperr.FromStore("mark EMI paid", "EMI installment", err)
		}
		e.Status = model.EmiPaid
		e.PaidAt = &now
		out = e
		return nil
	})
	if err != nil {
		return nil, s.fail("MarkPaid", "mark EMI paid", map[string]any{"emi_id": id}, err)
	}
	s.events.emit(ctx, actor, queue.EmiPaid, 0, map[string]string{
		"emi_id":     u64(out.ID),
		"vehicle_id": u64(out.VehicleID),
		"amount":     out.Amount.StringFixed(2),
		"month":      out.Month,
	})
	return out, nil
}

// EmiListInput narrows List.
type EmiListInput struct {
	VehicleID uint64
	Month     string
}

// List returns installments with overdue derived at read time.  Admin
// only.
func (s *EmiService) List(ctx context.Context, actor Actor, in EmiListInput) ([]model.EmiPayment, error) {
	if err := actor.requireAdmin("view EMI"); err != nil {
		return nil, err
	}
	month := strings.TrimSpace(in.Month)
	if month != "" && !finance.ValidMonth(month) {
		return nil, apperr.Invalid("month", "must be YYYY-MM")
	}
	out, err := s.store.ListEmiPayments(ctx, ledger.EmiFilter{VehicleID: in.VehicleID, Month: month})
	if err != nil {
		return nil, s.fail("List", "list EMI", in, apperr.Persistence("list EMI", err))
	}
	now := s.now()
	for i := range out {
		out[i].Status = out[i].EffectiveStatus(now)
	}
	return out, nil
}

// ResetEmi clears every installment.  Admin only.
func (s *EmiService) ResetEmi(ctx context.Context, actor Actor) error {
	if err := actor.requireAdmin("reset EMI data"); err != nil {
		return err
	}
	if err := s.store.DeleteAllEmiPayments(ctx); err != nil {
		return s.fail("ResetEmi", "reset EMI", nil, apperr.Persistence("reset EMI", err))
	}
	s.logger.WithField("actor_id", actor.UserID).Warn("EMI schedule reset")
	s.events.emit(ctx, actor, queue.LedgerReset, 0, map[string]string{"scope": "emi"})
	return nil
}
