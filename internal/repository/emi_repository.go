package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/fleet-ledger/internal/ledger"
	"github.com/iliyamo/fleet-ledger/internal/model"
)

// EmiRepo persists vehicle loan installments in 'emi_payments'.
type EmiRepo struct{ q querier }

const emiCols = "id,vehicle_id,amount,due_date,month,status,paid_at,created_at"

func scanEmi(row interface{ Scan(...any) error }) (*model.EmiPayment, error) {
	var (
		e      model.EmiPayment
		paidAt sql.NullTime
	)
	if err := row.Scan(&e.ID, &e.VehicleID, &e.Amount, &e.DueDate, &e.Month, &e.Status, &paidAt, &e.CreatedAt); err != nil {
		return nil, translate(err)
	}
	if paidAt.Valid {
		t := paidAt.Time
		e.PaidAt = &t
	}
	return &e, nil
}

// CreateEmiPayments inserts the whole schedule in one statement.  IDs are assigned
// from the first generated key; InnoDB hands out consecutive ids for a
// single multi-row INSERT under the default lock mode.
func (r *EmiRepo) CreateEmiPayments(ctx context.Context, ps []model.EmiPayment) error {
	if len(ps) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("INSERT INTO emi_payments (vehicle_id,amount,due_date,month,status) VALUES ")
	args := make([]any, 0, len(ps)*5)
	for i, p := range ps {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(?,?,?,?,?)")
		status := p.Status
		if status == "" {
			status = model.EmiPending
		}
		args = append(args, p.VehicleID, p.Amount, p.DueDate.UTC().Format("2006-01-02"), p.Month, status)
	}
	res, err := r.q.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return translate(err)
	}
	first, err := res.LastInsertId()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for i := range ps {
		ps[i].ID = uint64(first) + uint64(i)
		ps[i].CreatedAt = now
		if ps[i].Status == "" {
			ps[i].Status = model.EmiPending
		}
	}
	return nil
}

func (r *EmiRepo) GetEmiPayment(ctx context.Context, id uint64) (*model.EmiPayment, error) {
	return scanEmi(r.q.QueryRowContext(ctx, "SELECT "+emiCols+" FROM emi_payments WHERE id=?", id))
}

func (r *EmiRepo) MarkEmiPaid(ctx context.Context, id uint64, paidAt time.Time) error {
	return affected(r.q.ExecContext(ctx,
		"UPDATE emi_payments SET status='paid', paid_at=? WHERE id=?", paidAt.UTC(), id))
}

func (r *EmiRepo) ListEmiPayments(ctx context.Context, f ledger.EmiFilter) ([]model.EmiPayment, error) {
	var (
		conds []string
		args  []any
	)
	if f.VehicleID != 0 {
		conds = append(conds, "vehicle_id=?")
		args = append(args, f.VehicleID)
	}
	if f.Month != "" {
		conds = append(conds, "month=?")
		args = append(args, f.Month)
	}
	q := "SELECT " + emiCols + " FROM emi_payments"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	rows, err := r.q.QueryContext(ctx, q+" ORDER BY due_date, id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.EmiPayment{}
	for rows.Next() {
		e, err := scanEmi(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *EmiRepo) DeleteAllEmiPayments(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx, "DELETE FROM emi_payments")
	return err
}
