package service

import (
	"context"
	"strings"

	"github.com/iliyamo/fleet-ledger/internal/apperr"
	"github.com/iliyamo/fleet-ledger/internal/finance"
	"github.com/iliyamo/fleet-ledger/internal/ledger"
	"github.com/iliyamo/fleet-ledger/internal/model"
	"github.com/iliyamo/fleet-ledger/internal/queue"
)

// ExpenseService records expenses against journeys.  Every write
// reconciles the parent journey inside the same transaction.
type ExpenseService struct {
	base
	rec *Reconciler
}

func NewExpenseService(d Deps, rec *Reconciler) *ExpenseService {
	return &ExpenseService{base: newBase(d), rec: rec}
}

// ExpenseInput carries raw client values.  The secret flag is never taken
// from the client; it follows from the category.
type ExpenseInput struct {
	Category    string
	Amount      string
	Description string
}

// ExpenseResult is a written expense together with the reconciled
// journey, so clients can refresh the balance without another read.
type ExpenseResult struct {
	Expense model.Expense `json:"expense"`
	Journey model.Journey `json:"journey"`
}

const maxDescription = 500

func (in ExpenseInput) validate() (model.Expense, error) {
	bad := map[string]string{}
	c := model.ParseCategory(in.Category)
	if c == "" {
		bad["category"] = "required"
	} else if !finance.WellFormed(c) {
		bad["category"] = "must be a lowercase identifier"
	}
	amount, err := finance.ParseAmount(in.Amount)
	if err != nil {
		bad["amount"] = err.Error()
	}
	desc := strings.TrimSpace(in.Description)
	if len(desc) > maxDescription {
		bad["description"] = "too long"
	}
	if len(bad) > 0 {
		return model.Expense{}, apperr.Validation(bad)
	}
	return model.Expense{
		Category:        c,
		Amount:          amount,
		Description:     desc,
		IsCompanySecret: finance.Classify(c).Secret,
	}, nil
}

// Create adds an expense.  Drivers may add only to their own active
// journey; admins to any journey that is not cancelled.
func (s *ExpenseService) Create(ctx context.Context, actor Actor, journeyID uint64, in ExpenseInput) (*ExpenseResult, error) {
	e, err := in.validate()
	if err != nil {
		return nil, err
	}
	e.JourneyID = journeyID
	e.CreatedBy = actor.UserID

	var out ExpenseResult
	err = s.store.WithinTx(ctx, func(tx ledger.Store) error {
		j, err := tx.LockJourney(ctx, journeyID)
		if err != nil {
			return apperr.FromStore("lock journey", "journey", err)
		}
		switch {
		case actor.IsAdmin():
			if j.Status == model.JourneyCancelled {
				return apperr.Conflict("journey is cancelled")
			}
		case j.DriverID != actor.UserID:
			return apperr.Forbidden("journey belongs to another driver")
		case j.Status != model.JourneyActive:
			return apperr.Conflict("journey is " + string(j.Status))
		}
		if err := tx.CreateExpense(ctx, &e); err != nil {
			return apperr.FromStore("create expense", "expense", err)
		}
		rj, err := s.rec.RecomputeTx(ctx, tx, journeyID)
		if err != nil {
			return err
		}
		out = ExpenseResult{Expense: e, Journey: *rj}
		return nil
	})
	if err != nil {
		return nil, s.fail("Create", "create expense", map[string]any{"journey_id": journeyID, "category": e.Category}, err)
	}
	s.events.emit(ctx, actor, queue.ExpenseCreated, journeyID, expenseAttrs(out))
	return &out, nil
}

// Update rewrites an expense.  Admin only; the caller's role is checked
// before the store is touched.
func (s *ExpenseService) Update(ctx context.Context, actor Actor, id uint64, in ExpenseInput) (*ExpenseResult, error) {
	if err := actor.requireAdmin("edit expenses"); err != nil {
		return nil, err
	}
	patch, err := in.validate()
	if err != nil {
		return nil, err
	}

	var out ExpenseResult
	err = s.store.WithinTx(ctx, func(tx ledger.Store) error {
		cur, err := tx.GetExpense(ctx, id)
		if err != nil {
			return apperr.FromStore("load expense", "expense", err)
		}
		j, err := tx.LockJourney(ctx, cur.JourneyID)
		if err != nil {
			return apperr.FromStore("lock journey", "journey", err)
		}
		if j.Status == model.JourneyCancelled {
			return apperr.Conflict("journey is cancelled")
		}
		cur.Category = patch.Category
		cur.Amount = patch.Amount
		cur.Description = patch.Description
		cur.IsCompanySecret = patch.IsCompanySecret
		if err := tx.UpdateExpense(ctx, cur); err != nil {
			return apperr.FromStore("update expense", "expense", err)
		}
		rj, err := s.rec.RecomputeTx(ctx, tx, cur.JourneyID)
		if err != nil {
			return err
		}
		out = ExpenseResult{Expense: *cur, Journey: *rj}
		return nil
	})
	if err != nil {
		return nil, s.fail("Update", "update expense", map[string]any{"expense_id": id}, err)
	}
	s.events.emit(ctx, actor, queue.ExpenseUpdated, out.Journey.ID, expenseAttrs(out))
	return &out, nil
}

// Delete removes an expense and returns the reconciled journey.  Admin
// only.
func (s *ExpenseService) Delete(ctx context.Context, actor Actor, id uint64) (*model.Journey, error) {
	if err := actor.requireAdmin("delete expenses"); err != nil {
		return nil, err
	}
	var out *model.Journey
	var removed model.Expense
	err := s.store.WithinTx(ctx, func(tx ledger.Store) error {
		cur, err := tx.GetExpense(ctx, id)
		if err != nil {
			return apperr.FromStore("load expense", "expense", err)
		}
		if _, err := tx.LockJourney(ctx, cur.JourneyID); err != nil {
			return apperr.FromStore("lock journey", "journey", err)
		}
		if err := tx.DeleteExpense(ctx, id); err != nil {
			return apperr.FromStore("delete expense", "expense", err)
		}
		removed = *cur
		out, err = s.rec.RecomputeTx(ctx, tx, cur.JourneyID)
		return err
	})
	if err != nil {
		return nil, s.fail("Delete", "delete expense", map[string]any{"expense_id": id}, err)
	}
	s.events.emit(ctx, actor, queue.ExpenseDeleted, out.ID, expenseAttrs(ExpenseResult{Expense: removed, Journey: *out}))
	return out, nil
}

// List returns a journey's expenses, with company-secret rows dropped for
// drivers.  Drivers may list only their own journeys.
func (s *ExpenseService) List(ctx context.Context, actor Actor, journeyID uint64) ([]model.Expense, error) {
	j, err := s.store.GetJourney(ctx, journeyID)
	if err != nil {
		return nil, s.fail("List", "load journey", map[string]any{"journey_id": journeyID}, apperr.FromStore("load journey", "journey", err))
	}
	if !actor.IsAdmin() && j.DriverID != actor.UserID {
		return nil, apperr.Forbidden("journey belongs to another driver")
	}
	out, err := s.store.ListExpensesForRole(ctx, journeyID, actor.Role)
	if err != nil {
		return nil, s.fail("List", "list expenses", map[string]any{"journey_id": journeyID}, apperr.Persistence("list expenses", err))
	}
	return out, nil
}

func expenseAttrs(r ExpenseResult) map[string]string {
	return map[string]string{
		"expense_id": u64(r.Expense.ID),
		"category":   string(r.Expense.Category),
		"amount":     r.Expense.Amount.StringFixed(2),
		"balance":    r.Journey.Balance.StringFixed(2),
	}
}
