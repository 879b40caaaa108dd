package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/fleet-ledger/internal/ledger"
	"github.com/iliyamo/fleet-ledger/internal/model"
)

// JourneyRepo persists the 'journeys' table.  The cached total_expenses and
// balance columns are written only by SetJourneyTotals.
type JourneyRepo struct{ q querier }

const journeyCols = `id,driver_id,vehicle_id,license_plate,destination,pouch,security,status,
	started_at,ended_at,current_location,speed,distance,total_expenses,balance,created_at,updated_at`

func scanJourney(row interface{ Scan(...any) error }) (*model.Journey, error) {
	var (
		j        model.Journey
		endedAt  sql.NullTime
		location sql.NullString
		speed    sql.NullFloat64
		distance sql.NullFloat64
	)
	err := row.Scan(&j.ID, &j.DriverID, &j.VehicleID, &j.LicensePlate, &j.Destination,
		&j.Pouch, &j.Security, &j.Status, &j.StartedAt, &endedAt, &location, &speed, &distance,
		&j.TotalExpenses, &j.Balance, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	if endedAt.Valid {
		t := endedAt.Time
		j.EndedAt = &t
	}
	if location.Valid {
		s := location.String
		j.CurrentLocation = &s
	}
	if speed.Valid {
		f := speed.Float64
		j.Speed = &f
	}
	if distance.Valid {
		f := distance.Float64
		j.Distance = &f
	}
	return &j, nil
}

// journeyWhere renders f as a WHERE clause over alias j.
func journeyWhere(f ledger.JourneyFilter) (string, []any, error) {
	var (
		conds []string
		args  []any
	)
	if f.DriverID != 0 {
		conds = append(conds, "j.driver_id=?")
		args = append(args, f.DriverID)
	}
	if p := strings.TrimSpace(f.LicensePlate); p != "" {
		// utf8mb4 default collation compares case-insensitively
		conds = append(conds, "j.license_plate=?")
		args = append(args, p)
	}
	if f.Month != "" {
		from, err := time.Parse(model.MonthLayout, f.Month)
		if err != nil {
			return "", nil, fmt.Errorf("month %q: %w", f.Month, err)
		}
		conds = append(conds, "j.started_at>=? AND j.started_at<?")
		args = append(args, from, from.AddDate(0, 1, 0))
	}
	if f.Status != "" {
		conds = append(conds, "j.status=?")
		args = append(args, f.Status)
	}
	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func (r *JourneyRepo) CreateJourney(ctx context.Context, j *model.Journey) error {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO journeys (driver_id,vehicle_id,license_plate,destination,pouch,security,status,
			started_at,total_expenses,balance) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		j.DriverID, j.VehicleID, j.LicensePlate, j.Destination, j.Pouch, j.Security, j.Status,
		j.StartedAt.UTC(), j.TotalExpenses, j.Balance)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := r.GetJourney(ctx, uint64(id))
	if err != nil {
		return err
	}
	*j = *got
	return nil
}

func (r *JourneyRepo) GetJourney(ctx context.Context, id uint64) (*model.Journey, error) {
	return scanJourney(r.q.QueryRowContext(ctx, "SELECT "+journeyCols+" FROM journeys WHERE id=?", id))
}

// LockJourney reads the row with FOR UPDATE so concurrent reconciliations
// of the same journey serialize.
func (r *JourneyRepo) LockJourney(ctx context.Context, id uint64) (*model.Journey, error) {
	return scanJourney(r.q.QueryRowContext(ctx, "SELECT "+journeyCols+" FROM journeys WHERE id=? FOR UPDATE", id))
}

// ListJourneys returns matching journeys, newest first.
func (r *JourneyRepo) ListJourneys(ctx context.Context, f ledger.JourneyFilter) ([]model.Journey, error) {
	where, args, err := journeyWhere(f)
	if err != nil {
		return nil, err
	}
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+journeyCols+" FROM journeys j"+where+" ORDER BY j.started_at DESC, j.id DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Journey{}
	for rows.Next() {
		j, err := scanJourney(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

// UpdateJourney writes everything except the cached totals.
func (r *JourneyRepo) UpdateJourney(ctx context.Context, j *model.Journey) error {
	return affected(r.q.ExecContext(ctx,
		`UPDATE journeys SET vehicle_id=?, license_plate=?, destination=?, pouch=?, security=?, status=?,
			ended_at=?, current_location=?, speed=?, distance=? WHERE id=?`,
		j.VehicleID, j.LicensePlate, j.Destination, j.Pouch, j.Security, j.Status,
		j.EndedAt, j.CurrentLocation, j.Speed, j.Distance, j.ID))
}

// SetJourneyTotals writes both cached fields in one statement.
func (r *JourneyRepo) SetJourneyTotals(ctx context.Context, id uint64, totalExpenses, balance decimal.Decimal) error {
	return affected(r.q.ExecContext(ctx,
		"UPDATE journeys SET total_expenses=?, balance=? WHERE id=?", totalExpenses, balance, id))
}

// DeleteAllJourneys wipes journeys; expenses follow by cascade.
func (r *JourneyRepo) DeleteAllJourneys(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx, "DELETE FROM journeys")
	return err
}
