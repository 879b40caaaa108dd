package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/fleet-ledger/internal/ledger"
	"github.com/iliyamo/fleet-ledger/internal/model"
)

// ExpenseRepo persists the 'expenses' table.
type ExpenseRepo struct{ q querier }

const expenseCols = "e.id,e.journey_id,e.category,e.amount,e.description,e.is_company_secret,e.created_by,e.created_at,e.updated_at"

func scanExpense(row interface{ Scan(...any) error }) (*model.Expense, error) {
	var e model.Expense
	err := row.Scan(&e.ID, &e.JourneyID, &e.Category, &e.Amount, &e.Description,
		&e.IsCompanySecret, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (r *ExpenseRepo) list(ctx context.Context, q string, args ...any) ([]model.Expense, error) {
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *ExpenseRepo) CreateExpense(ctx context.Context, e *model.Expense) error {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO expenses (journey_id,category,amount,description,is_company_secret,created_by)
			VALUES (?,?,?,?,?,?)`,
		e.JourneyID, e.Category, e.Amount, e.Description, e.IsCompanySecret, e.CreatedBy)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := r.GetExpense(ctx, uint64(id))
	if err != nil {
		return err
	}
	*e = *got
	return nil
}

func (r *ExpenseRepo) GetExpense(ctx context.Context, id uint64) (*model.Expense, error) {
	return scanExpense(r.q.QueryRowContext(ctx, "SELECT "+expenseCols+" FROM expenses e WHERE e.id=?", id))
}

// UpdateExpense rewrites category, amount, description and secrecy.  The
// owning journey and author never change.
func (r *ExpenseRepo) UpdateExpense(ctx context.Context, e *model.Expense) error {
	return affected(r.q.ExecContext(ctx,
		"UPDATE expenses SET category=?, amount=?, description=?, is_company_secret=? WHERE id=?",
		e.Category, e.Amount, e.Description, e.IsCompanySecret, e.ID))
}

func (r *ExpenseRepo) DeleteExpense(ctx context.Context, id uint64) error {
	return affected(r.q.ExecContext(ctx, "DELETE FROM expenses WHERE id=?", id))
}

func (r *ExpenseRepo) ListExpenses(ctx context.Context, journeyID uint64) ([]model.Expense, error) {
	return r.list(ctx, "SELECT "+expenseCols+" FROM expenses e WHERE e.journey_id=? ORDER BY e.id", journeyID)
}

// ListExpensesForRole hides company-secret rows from everyone but admins.
func (r *ExpenseRepo) ListExpensesForRole(ctx context.Context, journeyID uint64, role model.Role) ([]model.Expense, error) {
	if role == model.RoleAdmin {
		return r.ListExpenses(ctx, journeyID)
	}
	return r.list(ctx,
		"SELECT "+expenseCols+" FROM expenses e WHERE e.journey_id=? AND e.is_company_secret=0 ORDER BY e.id",
		journeyID)
}

// ListExpensesByCategory joins journeys so the same filter that selects
// journeys selects their expenses.  An empty category list matches all.
func (r *ExpenseRepo) ListExpensesByCategory(ctx context.Context, f ledger.JourneyFilter, categories []model.Category) ([]model.Expense, error) {
	where, args, err := journeyWhere(f)
	if err != nil {
		return nil, err
	}
	if len(categories) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?,", len(categories)), ",")
		if where == "" {
			where = " WHERE "
		} else {
			where += " AND "
		}
		where += "e.category IN (" + marks + ")"
		for _, c := range categories {
			args = append(args, c)
		}
	}
	return r.list(ctx,
		"SELECT "+expenseCols+" FROM expenses e JOIN journeys j ON j.id=e.journey_id"+where+" ORDER BY e.id",
		args...)
}
