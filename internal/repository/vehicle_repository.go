package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/fleet-ledger/internal/model"
)

// VehicleRepo persists the 'vehicles' table.
type VehicleRepo struct{ q querier }

const vehicleCols = "id,license_plate,model,status,monthly_emi,created_at,updated_at"

func scanVehicle(row interface{ Scan(...any) error }) (*model.Vehicle, error) {
	var v model.Vehicle
	if err := row.Scan(&v.ID, &v.LicensePlate, &v.Model, &v.Status, &v.MonthlyEmi, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

// CreateVehicle inserts v; the plate is stored upper-cased.
func (r *VehicleRepo) CreateVehicle(ctx context.Context, v *model.Vehicle) error {
	v.LicensePlate = strings.ToUpper(strings.TrimSpace(v.LicensePlate))
	if v.Status == "" {
		v.Status = model.VehicleAvailable
	}
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO vehicles (license_plate,model,status,monthly_emi) VALUES (?,?,?,?)",
		v.LicensePlate, v.Model, v.Status, v.MonthlyEmi)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := r.GetVehicle(ctx, uint64(id))
	if err != nil {
		return err
	}
	*v = *got
	return nil
}

func (r *VehicleRepo) GetVehicle(ctx context.Context, id uint64) (*model.Vehicle, error) {
	return scanVehicle(r.q.QueryRowContext(ctx, "SELECT "+vehicleCols+" FROM vehicles WHERE id=?", id))
}

func (r *VehicleRepo) GetVehicleByPlate(ctx context.Context, plate string) (*model.Vehicle, error) {
	return scanVehicle(r.q.QueryRowContext(ctx,
		"SELECT "+vehicleCols+" FROM vehicles WHERE license_plate=?", strings.TrimSpace(plate)))
}

// LockVehicle reads the row with FOR UPDATE; only meaningful inside a
// transaction.
func (r *VehicleRepo) LockVehicle(ctx context.Context, id uint64) (*model.Vehicle, error) {
	return scanVehicle(r.q.QueryRowContext(ctx,
		"SELECT "+vehicleCols+" FROM vehicles WHERE id=? FOR UPDATE", id))
}

func (r *VehicleRepo) ListVehicles(ctx context.Context) ([]model.Vehicle, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT "+vehicleCols+" FROM vehicles ORDER BY license_plate")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Vehicle{}
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func (r *VehicleRepo) UpdateVehicle(ctx context.Context, v *model.Vehicle) error {
	v.LicensePlate = strings.ToUpper(strings.TrimSpace(v.LicensePlate))
	return affected(r.q.ExecContext(ctx,
		"UPDATE vehicles SET license_plate=?, model=?, status=?, monthly_emi=? WHERE id=?",
		v.LicensePlate, v.Model, v.Status, v.MonthlyEmi, v.ID))
}

func (r *VehicleRepo) SetVehicleStatus(ctx context.Context, id uint64, status model.VehicleStatus) error {
	return affected(r.q.ExecContext(ctx, "UPDATE vehicles SET status=? WHERE id=?", status, id))
}

// DeleteVehicle removes the vehicle and its EMI schedule.  Journeys keep a
// RESTRICT key, so a driven vehicle fails with ledger.ErrInUse.
func (r *VehicleRepo) DeleteVehicle(ctx context.Context, id uint64) error {
	return affected(r.q.ExecContext(ctx, "DELETE FROM vehicles WHERE id=?", id))
}

// ResetVehicleStatuses puts every vehicle back to available, including
// those parked in maintenance.
func (r *VehicleRepo) ResetVehicleStatuses(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx, "UPDATE vehicles SET status='available'")
	return err
}
