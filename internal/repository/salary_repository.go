package repository

import (
	"context"

	"github.com/iliyamo/fleet-ledger/internal/model"
)

// SalaryRepo persists the signed 'salary_payments' ledger.
type SalaryRepo struct{ q querier }

func (r *SalaryRepo) CreateSalaryPayment(ctx context.Context, p *model.SalaryPayment) error {
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO salary_payments (user_id,amount,description,month) VALUES (?,?,?,?)",
		p.UserID, p.Amount, p.Description, p.Month)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return translate(r.q.QueryRowContext(ctx,
		"SELECT created_at FROM salary_payments WHERE id=?", p.ID).Scan(&p.CreatedAt))
}

// ListSalaryPayments lists one user's entries, or all when userID is 0.
func (r *SalaryRepo) ListSalaryPayments(ctx context.Context, userID uint64) ([]model.SalaryPayment, error) {
	q := "SELECT id,user_id,amount,description,month,created_at FROM salary_payments"
	var args []any
	if userID != 0 {
		q += " WHERE user_id=?"
		args = append(args, userID)
	}
	rows, err := r.q.QueryContext(ctx, q+" ORDER BY month, id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.SalaryPayment{}
	for rows.Next() {
		var p model.SalaryPayment
		if err := rows.Scan(&p.ID, &p.UserID, &p.Amount, &p.Description, &p.Month, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SalaryRepo) DeleteAllSalaryPayments(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx, "DELETE FROM salary_payments")
	return err
}
