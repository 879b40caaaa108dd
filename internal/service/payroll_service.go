package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/fleet-ledger/internal/apperr"
	"github.com/iliyamo/fleet-ledger/internal/finance"
	"github.com/iliyamo/fleet-ledger/internal/model"
	"github.com/iliyamo/fleet-ledger/internal/queue"
)

// PayrollService keeps the signed salary ledger.  Positive entries are
// payments or advances to a user; negative entries are debts the user owes
// back.
type PayrollService struct {
	base
}

func NewPayrollService(d Deps) *PayrollService {
	return &PayrollService{base: newBase(d)}
}

// SalaryInput carries raw client values.  Month defaults to the current
// month.
type SalaryInput struct {
	UserID      uint64
	Amount      string
	Description string
	Month       string
}

// RecordSalary appends one signed entry.  Admin only.
func (s *PayrollService) RecordSalary(ctx context.Context, actor Actor, in SalaryInput) (*model.SalaryPayment, error) {
	if err := actor.requireAdmin("record salary"); err != nil {
		return nil, err
	}
	bad := map[string]string{}
	if in.UserID == 0 {
		bad["user_id"] = "required"
	}
	amount, err := finance.ParseSigned(in.Amount)
	if err != nil {
		bad["amount"] = err.Error()
	}
	month := strings.TrimSpace(in.Month)
	if month == "" {
		month = s.now().Format(model.MonthLayout)
	} else if !finance.ValidMonth(month) {
		bad["month"] = "must be YYYY-MM"
	}
	desc := strings.TrimSpace(in.Description)
	if len(desc) > maxDescription {
		bad["description"] = "too long"
	}
	if len(bad) > 0 {
		return nil, apperr.Validation(bad)
	}

	p := &model.SalaryPayment{UserID: in.UserID, Amount: amount, Description: desc, Month: month}
	if err := s.store.CreateSalaryPayment(ctx, p); err != nil {
		return nil, s.fail("RecordSalary", "create salary entry", p, apperr.FromStore("record salary", "user", err))
	}
	s.events.emit(ctx, actor, queue.SalaryRecorded, 0, map[string]string{
		"user_id": u64(p.UserID),
		"amount":  p.Amount.StringFixed(2),
		"month":   p.Month,
	})
	return p, nil
}

// ListSalary lists salary entries.  Drivers see only their own; admins
// see one user's or, with userID 0, everyone's.
func (s *PayrollService) ListSalary(ctx context.Context, actor Actor, userID uint64) ([]model.SalaryPayment, error) {
	if !actor.IsAdmin() {
		userID = actor.UserID
	}
	out, err := s.store.ListSalaryPayments(ctx, userID)
	if err != nil {
		return nil, s.fail("ListSalary", "list salary", map[string]any{"user_id": userID}, apperr.Persistence("list salary", err))
	}
	return out, nil
}

// Balances reports each driver's position for month: the baseline
// salary, what was paid, debts recorded, and what is still owed.
// Outstanding = baseline - paid - debts, and may go negative.
func (s *PayrollService) Balances(ctx context.Context, actor Actor, month string) ([]model.PayrollBalance, error) {
	if err := actor.requireAdmin("view payroll balances"); err != nil {
		return nil, err
	}
	month = strings.TrimSpace(month)
	if month == "" {
		month = s.now().Format(model.MonthLayout)
	}
	if !finance.ValidMonth(month) {
		return nil, apperr.Invalid("month", "must be YYYY-MM")
	}
	drivers, err := s.store.ListUsers(ctx, model.RoleDriver)
	if err != nil {
		return nil, s.fail("Balances", "list drivers", nil, apperr.Persistence("list drivers", err))
	}
	entries, err := s.store.ListSalaryPayments(ctx, 0)
	if err != nil {
		return nil, s.fail("Balances", "list salary", nil, apperr.Persistence("list salary", err))
	}
	type sums struct{ paid, debts decimal.Decimal }
	byUser := map[uint64]*sums{}
	for _, e := range entries {
		if e.Month != month {
			continue
		}
		sm := byUser[e.UserID]
		if sm == nil {
			sm = &sums{paid: decimal.Zero, debts: decimal.Zero}
			byUser[e.UserID] = sm
		}
		if e.Amount.IsPositive() {
			sm.paid = sm.paid.Add(e.Amount)
		} else {
			sm.debts = sm.debts.Add(e.Amount.Abs())
		}
	}
	out := make([]model.PayrollBalance, 0, len(drivers))
	for _, d := range drivers {
		b := model.PayrollBalance{
			UserID:   d.ID,
			Name:     d.Name,
			Month:    month,
			Baseline: d.MonthlySalary,
			Paid:     decimal.Zero,
			Debts:    decimal.Zero,
		}
		if sm := byUser[d.ID]; sm != nil {
			b.Paid, b.Debts = sm.paid, sm.debts
		}
		b.Outstanding = b.Baseline.Sub(b.Paid).Sub(b.Debts)
		out = append(out, b)
	}
	return out, nil
}

// ResetSalary clears the salary ledger.  Admin only.
func (s *PayrollService) ResetSalary(ctx context.Context, actor Actor) error {
	if err := actor.requireAdmin("reset salary data"); err != nil {
		return err
	}
	if err := s.store.DeleteAllSalaryPayments(ctx); err != nil {
		return s.fail("ResetSalary", "reset salary", nil, apperr.Persistence("reset salary", err))
	}
	s.logger.WithField("actor_id", actor.UserID).Warn("salary ledger reset")
	s.events.emit(ctx, actor, queue.LedgerReset, 0, map[string]string{"scope": "salary"})
	return nil
}
