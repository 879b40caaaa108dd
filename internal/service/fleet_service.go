package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/iliyamo/fleet-ledger/internal/apperr"
	"github.com/iliyamo/fleet-ledger/internal/finance"
	"github.com/iliyamo/fleet-ledger/internal/ledger"
	"github.com/iliyamo/fleet-ledger/internal/model"
	"github.com/iliyamo/fleet-ledger/internal/utils"
)

// FleetService manages user accounts and vehicles.
type FleetService struct {
	base
	bcryptCost int
}

func NewFleetService(d Deps, bcryptCost int) *FleetService {
	return &FleetService{base: newBase(d), bcryptCost: bcryptCost}
}

// UserInput creates an account.
type UserInput struct {
	Email         string
	Name          string
	Password      string
	Role          string
	MonthlySalary string
}

// UserPatch edits an account.  Nil leaves a field unchanged.
type UserPatch struct {
	Name          *string
	Password      *string
	MonthlySalary *string
	IsActive      *bool
}

// VehicleInput registers a vehicle.
type VehicleInput struct {
	LicensePlate string
	Model        string
	MonthlyEmi   string
}

// VehiclePatch edits a vehicle.  Status may only move between available
// and maintenance; in_use is owned by the journey lifecycle.
type VehiclePatch struct {
	LicensePlate *string
	Model        *string
	MonthlyEmi   *string
	Status       *string
}

// CreateUser registers an admin or driver with a bcrypt-hashed password.
func (s *FleetService) CreateUser(ctx context.Context, actor Actor, in UserInput) (*model.User, error) {
	if err := actor.requireAdmin("create users"); err != nil {
		return nil, err
	}
	bad := map[string]string{}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		bad["email"] = "must be a valid email"
	}
	if len(in.Password) < utils.MinPasswordLen {
		bad["password"] = "must be at least 8 characters"
	}
	role := model.Role(strings.ToLower(strings.TrimSpace(in.Role)))
	if role == "" {
		role = model.RoleDriver
	}
	if !role.Valid() {
		bad["role"] = "must be admin or driver"
	}
	salary, err := finance.ParseNonNegative(in.MonthlySalary)
	if err != nil {
		bad["monthly_salary"] = err.Error()
	}
	if len(bad) > 0 {
		return nil, apperr.Validation(bad)
	}
	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, s.fail("CreateUser", "hash password", nil, apperr.Persistence("hash password", err))
	}
	u := &model.User{
		Email:         email,
		Name:          strings.TrimSpace(in.Name),
		PasswordHash:  hash,
		Role:          role,
		MonthlySalary: salary,
		IsActive:      true,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, s.fail("CreateUser", "create user", map[string]any{"email": email}, apperr.FromStore("create user", "user", err))
	}
	return u, nil
}

// EnsureAdmin creates the bootstrap admin when no admin exists yet.  It
// reports whether an account was created.
func (s *FleetService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	admins, err := s.store.ListUsers(ctx, model.RoleAdmin)
	if err != nil {
		return false, apperr.Persistence("list admins", err)
	}
	if len(admins) > 0 {
		return false, nil
	}
	system := Actor{Role: model.RoleAdmin}
	if _, err := s.CreateUser(ctx, system, UserInput{Email: email, Name: "Administrator", Password: password, Role: string(model.RoleAdmin)}); err != nil {
		return false, err
	}
	return true, nil
}

// ListUsers lists accounts, optionally by role.  Admin only.
func (s *FleetService) ListUsers(ctx context.Context, actor Actor, role string) ([]model.User, error) {
	if err := actor.requireAdmin("list users"); err != nil {
		return nil, err
	}
	r := model.Role(strings.ToLower(strings.TrimSpace(role)))
	if r != "" && !r.Valid() {
		return nil, apperr.Invalid("role", "must be admin or driver")
	}
	out, err := s.store.ListUsers(ctx, r)
	if err != nil {
		return nil, s.fail("ListUsers", "list users", nil, apperr.Persistence("list users", err))
	}
	return out, nil
}

// GetUser returns one account.  Drivers may read only themselves.
func (s *FleetService) GetUser(ctx context.Context, actor Actor, id uint64) (*model.User, error) {
	if !actor.IsAdmin() && id != actor.UserID {
		return nil, apperr.Forbidden("drivers may only read their own account")
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, s.fail("GetUser", "load user", map[string]any{"user_id": id}, apperr.FromStore("load user", "user", err))
	}
	return u, nil
}

// UpdateUser edits name, password, salary or the active flag.  Admin
// only.
func (s *FleetService) UpdateUser(ctx context.Context, actor Actor, id uint64, in UserPatch) (*model.User, error) {
	if err := actor.requireAdmin("edit users"); err != nil {
		return nil, err
	}
	bad := map[string]string{}
	if in.Password != nil && len(*in.Password) < utils.MinPasswordLen {
		bad["password"] = "must be at least 8 characters"
	}
	var salaryErr error
	if in.MonthlySalary != nil {
		if _, salaryErr = finance.ParseNonNegative(*in.MonthlySalary); salaryErr != nil {
			bad["monthly_salary"] = salaryErr.Error()
		}
	}
	if len(bad) > 0 {
		return nil, apperr.Validation(bad)
	}
	var out *model.User
	err := s.store.WithinTx(ctx, func(tx ledger.Store) error {
		u, err := tx.GetUser(ctx, id)
		if err != nil {
			return apperr.FromStore("load user", "user", err)
		}
		if in.Name != nil {
			u.Name = strings.TrimSpace(*in.Name)
		}
		if in.MonthlySalary != nil {
			u.MonthlySalary, _ = finance.ParseNonNegative(*in.MonthlySalary)
		}
		if in.IsActive != nil {
			u.IsActive = *in.IsActive
		}
		if in.Password != nil {
			hash, err := utils.HashPassword(*in.Password, s.bcryptCost)
			if err != nil {
				return apperr.Persistence("hash password", err)
			}
			u.PasswordHash = hash
		}
		if err := tx.UpdateUser(ctx, u); err != nil {
			return apperr.FromStore("update user", "user", err)
		}
		if in.Password != nil || (in.IsActive != nil && !*in.IsActive) {
			if err := tx.RevokeAllRefresh(ctx, id); err != nil {
				return apperr.Persistence("revoke sessions", err)
			}
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, s.fail("UpdateUser", "update user", map[string]any{"user_id": id}, err)
	}
	return out, nil
}

// CreateVehicle registers a vehicle as available.  Admin only.
func (s *FleetService) CreateVehicle(ctx context.Context, actor Actor, in VehicleInput) (*model.Vehicle, error) {
	if err := actor.requireAdmin("create vehicles"); err != nil {
		return nil, err
	}
	bad := map[string]string{}
	plate := model.NormalizePlate(in.LicensePlate)
	if plate == "" {
		bad["license_plate"] = "required"
	} else if len(plate) > 32 {
		bad["license_plate"] = "too long"
	}
	emi, err := finance.ParseNonNegative(in.MonthlyEmi)
	if err != nil {
		bad["monthly_emi"] = err.Error()
	}
	if len(bad) > 0 {
		return nil, apperr.Validation(bad)
	}
	v := &model.Vehicle{
		LicensePlate: plate,
		Model:        strings.TrimSpace(in.Model),
		Status:       model.VehicleAvailable,
		MonthlyEmi:   emi,
	}
	if err := s.store.CreateVehicle(ctx, v); err != nil {
		return nil, s.fail("CreateVehicle", "create vehicle", map[string]any{"plate": plate}, apperr.FromStore("create vehicle", "vehicle", err))
	}
	s.invalidate(ctx, "CreateVehicle")
	return v, nil
}

// ListVehicles returns the fleet.  Any role.
func (s *FleetService) ListVehicles(ctx context.Context, actor Actor) ([]model.Vehicle, error) {
	out, err := s.store.ListVehicles(ctx)
	if err != nil {
		return nil, s.fail("ListVehicles", "list vehicles", nil, apperr.Persistence("list vehicles", err))
	}
	return out, nil
}

// GetVehicle returns one vehicle.  Any role.
func (s *FleetService) GetVehicle(ctx context.Context, actor Actor, id uint64) (*model.Vehicle, error) {
	v, err := s.store.GetVehicle(ctx, id)
	if err != nil {
		return nil, s.fail("GetVehicle", "load vehicle", map[string]any{"vehicle_id": id}, apperr.FromStore("load vehicle", "vehicle", err))
	}
	return v, nil
}

// UpdateVehicle edits a vehicle.  A vehicle on a journey cannot have its
// status changed by hand.  Admin only.
func (s *FleetService) UpdateVehicle(ctx context.Context, actor Actor, id uint64, in VehiclePatch) (*model.Vehicle, error) {
	if err := actor.requireAdmin("edit vehicles"); err != nil {
		return nil, err
	}
	bad := map[string]string{}
	var status model.VehicleStatus
	if in.Status != nil {
		status = model.VehicleStatus(strings.ToLower(strings.TrimSpace(*in.Status)))
		if status != model.VehicleAvailable && status != model.VehicleMaintenance {
			bad["status"] = "must be available or maintenance"
		}
	}
	if in.MonthlyEmi != nil {
		if _, err := finance.ParseNonNegative(*in.MonthlyEmi); err != nil {
			bad["monthly_emi"] = err.Error()
		}
	}
	if in.LicensePlate != nil && model.NormalizePlate(*in.LicensePlate) == "" {
		bad["license_plate"] = "required"
	}
	if len(bad) > 0 {
		return nil, apperr.Validation(bad)
	}

	var out *model.Vehicle
	err := s.store.WithinTx(ctx, func(tx ledger.Store) error {
		v, err := tx.LockVehicle(ctx, id)
		if err != nil {
			return apperr.FromStore("lock vehicle", "vehicle", err)
		}
		if in.Status != nil && status != v.Status {
			if v.Status == model.VehicleInUse {
				return apperr.Conflict("vehicle is on an active journey")
			}
			v.Status = status
		}
		if in.LicensePlate != nil {
			v.LicensePlate = model.NormalizePlate(*in.LicensePlate)
		}
		if in.Model != nil {
			v.Model = strings.TrimSpace(*in.Model)
		}
		if in.MonthlyEmi != nil {
			v.MonthlyEmi, _ = finance.ParseNonNegative(*in.MonthlyEmi)
		}
		if err := tx.UpdateVehicle(ctx, v); err != nil {
			return apperr.FromStore("update vehicle", "vehicle", err)
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, s.fail("UpdateVehicle", "update vehicle", map[string]any{"vehicle_id": id}, err)
	}
	s.invalidate(ctx, "UpdateVehicle")
	return out, nil
}

// DeleteVehicle removes a vehicle that has never been driven.  Its EMI
// schedule goes with it.  Admin only.
func (s *FleetService) DeleteVehicle(ctx context.Context, actor Actor, id uint64) error {
	if err := actor.requireAdmin("delete vehicles"); err != nil {
		return err
	}
	err := s.store.WithinTx(ctx, func(tx ledger.Store) error {
		v, err := tx.LockVehicle(ctx, id)
		if err != nil {
			return apperr.FromStore("lock vehicle", "vehicle", err)
		}
		if v.Status == model.VehicleInUse {
			return apperr.Conflict("vehicle is on an active journey")
		}
		return apperr.FromStore("delete vehicle", "vehicle", tx.DeleteVehicle(ctx, id))
	})
	if err != nil {
		return s.fail("DeleteVehicle", "delete vehicle", map[string]any{"vehicle_id": id}, err)
	}
	s.invalidate(ctx, "DeleteVehicle")
	return nil
}

// ErrInvalidCredentials is returned by Authenticate for unknown users,
// wrong passwords and inactive accounts alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticate checks an email/password pair and returns the account.
func (s *FleetService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, s.fail("Authenticate", "load user", nil, apperr.Persistence("load user", err))
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}
