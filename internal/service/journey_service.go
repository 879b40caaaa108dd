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

// JourneyService runs the journey lifecycle.
type JourneyService struct {
	base
	rec *Reconciler
}

func NewJourneyService(d Deps, rec *Reconciler) *JourneyService {
	return &JourneyService{base: newBase(d), rec: rec}
}

// StartJourneyInput carries raw client values; money arrives as decimal
// strings.  DriverID is honoured only for admins starting a journey on a
// driver's behalf.
type StartJourneyInput struct {
	DriverID    uint64
	VehicleID   uint64
	Destination string
	Pouch       string
	Security    string
}

// FinancialsInput edits pouch and/or security.  Nil leaves a value as is.
type FinancialsInput struct {
	Pouch    *string
	Security *string
}

// TelemetryInput updates live position data.  Nil leaves a value as is.
type TelemetryInput struct {
	CurrentLocation *string
	Speed           *float64
	Distance        *float64
}

// JourneyListInput narrows List.  Drivers always see only their own
// journeys whatever DriverID says.
type JourneyListInput struct {
	DriverID uint64
	Vehicle  string
	Month    string
	Status   string
}

// JourneyDetail is a journey with the expenses the caller may see.
type JourneyDetail struct {
	model.Journey
	SecurityRefund decimal.Decimal `json:"security_refund"`
	Expenses       []model.Expense `json:"expenses"`
}

// Start opens a journey: the driver must have no active journey and the
// vehicle must be available.  The vehicle moves to in_use in the same
// transaction.
func (s *JourneyService) Start(ctx context.Context, actor Actor, in StartJourneyInput) (*model.Journey, error) {
	driverID := actor.UserID
	if actor.IsAdmin() {
		driverID = in.DriverID
	}
	bad := map[string]string{}
	if driverID == 0 {
		bad["driver_id"] = "required"
	}
	if in.VehicleID == 0 {
		bad["vehicle_id"] = "required"
	}
	destination := strings.TrimSpace(in.Destination)
	if destination == "" {
		bad["destination"] = "required"
	}
	pouch, err := finance.ParseNonNegative(in.Pouch)
	if err != nil {
		bad["pouch"] = err.Error()
	}
	security, err := finance.ParseNonNegative(in.Security)
	if err != nil {
		bad["security"] = err.Error()
	}
	if len(bad) > 0 {
		return nil, apperr.Validation(bad)
	}

	var out *model.Journey
	err = s.store.WithinTx(ctx, func(tx ledger.Store) error {
		driver, err := tx.GetUser(ctx, driverID)
		if err != nil {
			return apperr.FromStore("load driver", "driver", err)
		}
		if driver.Role != model.RoleDriver || !driver.IsActive {
			return apperr.Invalid("driver_id", "must be an active driver")
		}
		active, err := tx.ListJourneys(ctx, ledger.JourneyFilter{DriverID: driverID, Status: model.JourneyActive})
		if err != nil {
			return apperr.Persistence("list active journeys", err)
		}
		if len(active) > 0 {
			return apperr.Conflict("driver already has an active journey")
		}
		v, err := tx.LockVehicle(ctx, in.VehicleID)
		if err != nil {
			return apperr.FromStore("lock vehicle", "vehicle", err)
		}
		if v.Status != model.VehicleAvailable {
			return apperr.Conflict("vehicle is " + string(v.Status))
		}
		if err := tx.SetVehicleStatus(ctx, v.ID, model.VehicleInUse); err != nil {
			return apperr.FromStore("reserve vehicle", "vehicle", err)
		}
		j := &model.Journey{
			DriverID:      driverID,
			VehicleID:     v.ID,
			LicensePlate:  v.LicensePlate,
			Destination:   destination,
			Pouch:         pouch,
			Security:      security,
			Status:        model.JourneyActive,
			StartedAt:     s.now(),
			TotalExpenses: decimal.Zero,
			Balance:       pouch,
		}
		if err := tx.CreateJourney(ctx, j); err != nil {
			return apperr.FromStore("create journey", "journey", err)
		}
		out, err = s.rec.RecomputeTx(ctx, tx, j.ID)
		return err
	})
	if err != nil {
		return nil, s.fail("Start", "start journey", in, err)
	}
	s.events.emit(ctx, actor, queue.JourneyStarted, out.ID, map[string]string{
		"driver_id":     u64(out.DriverID),
		"license_plate": out.LicensePlate,
		"pouch":         out.Pouch.StringFixed(2),
		"security":      out.Security.StringFixed(2),
	})
	s.invalidate(ctx, "Start")
	return out, nil
}

// Complete closes an active journey, frees its vehicle and reconciles it
// one last time.  Only the owning driver or an admin may complete.
func (s *JourneyService) Complete(ctx context.Context, actor Actor, id uint64) (*model.Journey, error) {
	return s.finish(ctx, actor, id, model.JourneyCompleted)
}

// Cancel abandons an active journey.  Admin only.
func (s *JourneyService) Cancel(ctx context.Context, actor Actor, id uint64) (*model.Journey, error) {
	if err := actor.requireAdmin("cancel journeys"); err != nil {
		return nil, err
	}
	return s.finish(ctx, actor, id, model.JourneyCancelled)
}

func (s *JourneyService) finish(ctx context.Context, actor Actor, id uint64, to model.JourneyStatus) (*model.Journey, error) {
	var out *model.Journey
	err := s.store.WithinTx(ctx, func(tx ledger.Store) error {
		j, err := tx.LockJourney(ctx, id)
		if err != nil {
			return apperr.FromStore("lock journey", "journey", err)
		}
		if !actor.IsAdmin() && j.DriverID != actor.UserID {
			return apperr.Forbidden("journey belongs to another driver")
		}
		if j.Status != model.JourneyActive {
			return apperr.Conflict("journey is already " + string(j.Status))
		}
		now := s.now()
		j.Status = to
		j.EndedAt = &now
		if err := tx.UpdateJourney(ctx, j); err != nil {
			return apperr.FromStore("update journey", "journey", err)
		}
		if err := tx.SetVehicleStatus(ctx, j.VehicleID, model.VehicleAvailable); err != nil && !errors.Is(err, ledger.ErrNotFound) {
			return apperr.Persistence("release vehicle", err)
		}
		out, err = s.rec.RecomputeTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, s.fail("finish", "finish journey", map[string]any{"journey_id": id, "to": to}, err)
	}
	typ := queue.JourneyCompleted
	if to == model.JourneyCancelled {
		typ = queue.JourneyCancelled
	}
	s.events.emit(ctx, actor, typ, id, map[string]string{
		"balance":         out.Balance.StringFixed(2),
		"total_expenses":  out.TotalExpenses.StringFixed(2),
		"security_refund": finance.SecurityRefund(*out).StringFixed(2),
	})
	s.invalidate(ctx, "finish")
	return out, nil
}

// UpdateFinancials lets an admin correct pouch and security.  The cached
// totals are reconciled in the same transaction.
func (s *JourneyService) UpdateFinancials(ctx context.Context, actor Actor, id uint64, in FinancialsInput) (*model.Journey, error) {
	if err := actor.requireAdmin("edit journey financials"); err != nil {
		return nil, err
	}
	if in.Pouch == nil && in.Security == nil {
		return nil, apperr.Validation(map[string]string{"pouch": "pouch or security required", "security": "pouch or security required"})
	}
	bad := map[string]string{}
	var pouch, security decimal.Decimal
	var err error
	if in.Pouch != nil {
		if pouch, err = finance.ParseNonNegative(*in.Pouch); err != nil {
			bad["pouch"] = err.Error()
		}
	}
	if in.Security != nil {
		if security, err = finance.ParseNonNegative(*in.Security); err != nil {
			bad["security"] = err.Error()
		}
	}
	if len(bad) > 0 {
		return nil, apperr.Validation(bad)
	}

	var out *model.Journey
	err = s.store.WithinTx(ctx, func(tx ledger.Store) error {
		j, err := tx.LockJourney(ctx, id)
		if err != nil {
			return apperr.FromStore("lock journey", "journey", err)
		}
		if j.Status == model.JourneyCancelled {
			return apperr.Conflict("journey is cancelled")
		}
		if in.Pouch != nil {
			j.Pouch = pouch
		}
		if in.Security != nil {
			j.Security = security
		}
		if err := tx.UpdateJourney(ctx, j); err != nil {
			return apperr.FromStore("update journey", "journey", err)
		}
		out, err = s.rec.RecomputeTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, s.fail("UpdateFinancials", "update journey financials", map[string]any{"journey_id": id}, err)
	}
	s.events.emit(ctx, actor, queue.JourneyFinancialsUpdated, id, map[string]string{
		"pouch":    out.Pouch.StringFixed(2),
		"security": out.Security.StringFixed(2),
		"balance":  out.Balance.StringFixed(2),
	})
	return out, nil
}

// UpdateTelemetry records location, speed and distance on an active
// journey.  Drivers may update only their own.
func (s *JourneyService) UpdateTelemetry(ctx context.Context, actor Actor, id uint64, in TelemetryInput) (*model.Journey, error) {
	bad := map[string]string{}
	if in.Speed != nil && *in.Speed < 0 {
		bad["speed"] = "must not be negative"
	}
	if in.Distance != nil && *in.Distance < 0 {
		bad["distance"] = "must not be negative"
	}
	if in.CurrentLocation == nil && in.Speed == nil && in.Distance == nil {
		bad["current_location"] = "at least one telemetry field required"
	}
	if len(bad) > 0 {
		return nil, apperr.Validation(bad)
	}

	var out *model.Journey
	err := s.store.WithinTx(ctx, func(tx ledger.Store) error {
		j, err := tx.LockJourney(ctx, id)
		if err != nil {
			return apperr.FromStore("lock journey", "journey", err)
		}
		if !actor.IsAdmin() && j.DriverID != actor.UserID {
			return apperr.Forbidden("journey belongs to another driver")
		}
		if j.Status != model.JourneyActive {
			return apperr.Conflict("journey is " + string(j.Status))
		}
		if in.CurrentLocation != nil {
			loc := strings.TrimSpace(*in.CurrentLocation)
			j.CurrentLocation = &loc
		}
		if in.Speed != nil {
			j.Speed = in.Speed
		}
		if in.Distance != nil {
			j.Distance = in.Distance
		}
		if err := tx.UpdateJourney(ctx, j); err != nil {
			return apperr.FromStore("update journey", "journey", err)
		}
		out = j
		return nil
	})
	if err != nil {
		return nil, s.fail("UpdateTelemetry", "update telemetry", map[string]any{"journey_id": id}, err)
	}
	return out, nil
}

// Get returns a journey and the expenses visible to the caller.
func (s *JourneyService) Get(ctx context.Context, actor Actor, id uint64) (*JourneyDetail, error) {
	j, err := s.store.GetJourney(ctx, id)
	if err != nil {
		return nil, s.fail("Get", "load journey", map[string]any{"journey_id": id}, apperr.FromStore("load journey", "journey", err))
	}
	if !actor.IsAdmin() && j.DriverID != actor.UserID {
		return nil, apperr.Forbidden("journey belongs to another driver")
	}
	expenses, err := s.store.ListExpensesForRole(ctx, id, actor.Role)
	if err != nil {
		return nil, s.fail("Get", "list expenses", map[string]any{"journey_id": id}, apperr.Persistence("list expenses", err))
	}
	return &JourneyDetail{Journey: *j, SecurityRefund: finance.SecurityRefund(*j), Expenses: expenses}, nil
}

// List returns journeys newest first.
func (s *JourneyService) List(ctx context.Context, actor Actor, in JourneyListInput) ([]model.Journey, error) {
	f := ledger.JourneyFilter{
		DriverID:     in.DriverID,
		LicensePlate: model.NormalizePlate(in.Vehicle),
		Month:        strings.TrimSpace(in.Month),
		Status:       model.JourneyStatus(strings.ToLower(strings.TrimSpace(in.Status))),
	}
	if !actor.IsAdmin() {
		f.DriverID = actor.UserID
	}
	bad := map[string]string{}
	if f.Month != "" && !finance.ValidMonth(f.Month) {
		bad["month"] = "must be YYYY-MM"
	}
	switch f.Status {
	case "", model.JourneyActive, model.JourneyCompleted, model.JourneyCancelled:
	default:
		bad["status"] = "must be one of active, completed, cancelled"
	}
	if len(bad) > 0 {
		return nil, apperr.Validation(bad)
	}
	out, err := s.store.ListJourneys(ctx, f)
	if err != nil {
		return nil, s.fail("List", "list journeys", f, apperr.Persistence("list journeys", err))
	}
	return out, nil
}
