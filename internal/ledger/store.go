// Package ledger defines the Ledger Store contract: durable records for
// users, vehicles, journeys, expenses, salary entries and EMI
// installments.  The store owns no business rules; reconciliation and
// aggregation live in package finance and are driven by the services.
//
// Implementations must return ErrNotFound, ErrDuplicate and ErrInUse
// (possibly wrapped) for the matching conditions.
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/fleet-ledger/internal/model"
)

// JourneyFilter narrows journey and expense listings.  Zero values mean
// "any".
type JourneyFilter struct {
	DriverID     uint64
	LicensePlate string
	Month        string // YYYY-MM on started_at
	Status       model.JourneyStatus
}

// EmiFilter narrows EMI listings.
type EmiFilter struct {
	VehicleID uint64
	Month     string
}

// Users persists user accounts.
type Users interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id uint64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context, role model.Role) ([]model.User, error)
	UpdateUser(ctx context.Context, u *model.User) error
}

// Vehicles persists the fleet.
type Vehicles interface {
	CreateVehicle(ctx context.Context, v *model.Vehicle) error
	GetVehicle(ctx context.Context, id uint64) (*model.Vehicle, error)
	GetVehicleByPlate(ctx context.Context, plate string) (*model.Vehicle, error)
	// LockVehicle reads the row and holds it until the transaction ends.
	LockVehicle(ctx context.Context, id uint64) (*model.Vehicle, error)
	ListVehicles(ctx context.Context) ([]model.Vehicle, error)
	UpdateVehicle(ctx context.Context, v *model.Vehicle) error
	SetVehicleStatus(ctx context.Context, id uint64, status model.VehicleStatus) error
	DeleteVehicle(ctx context.Context, id uint64) error
	ResetVehicleStatuses(ctx context.Context) error
}

// Journeys persists journeys.  UpdateJourney never touches the cached
// totals; only SetJourneyTotals writes them.
type Journeys interface {
	CreateJourney(ctx context.Context, j *model.Journey) error
	GetJourney(ctx context.Context, id uint64) (*model.Journey, error)
	// LockJourney reads the row and holds it until the transaction ends.
	LockJourney(ctx context.Context, id uint64) (*model.Journey, error)
	ListJourneys(ctx context.Context, f JourneyFilter) ([]model.Journey, error)
	UpdateJourney(ctx context.Context, j *model.Journey) error
	SetJourneyTotals(ctx context.Context, id uint64, totalExpenses, balance decimal.Decimal) error
	DeleteAllJourneys(ctx context.Context) error
}

// Expenses persists journey expenses.
type Expenses interface {
	CreateExpense(ctx context.Context, e *model.Expense) error
	GetExpense(ctx context.Context, id uint64) (*model.Expense, error)
	UpdateExpense(ctx context.Context, e *model.Expense) error
	DeleteExpense(ctx context.Context, id uint64) error
	ListExpenses(ctx context.Context, journeyID uint64) ([]model.Expense, error)
	// ListExpensesForRole drops company-secret rows unless role is admin.
	ListExpensesForRole(ctx context.Context, journeyID uint64, role model.Role) ([]model.Expense, error)
	// ListExpensesByCategory returns rows of the given categories whose
	// journey matches f.
	ListExpensesByCategory(ctx context.Context, f JourneyFilter, categories []model.Category) ([]model.Expense, error)
}

// Payroll persists the signed salary ledger.
type Payroll interface {
	CreateSalaryPayment(ctx context.Context, p *model.SalaryPayment) error
	// ListSalaryPayments lists one user's entries, or everyone's when
	// userID is 0.
	ListSalaryPayments(ctx context.Context, userID uint64) ([]model.SalaryPayment, error)
	DeleteAllSalaryPayments(ctx context.Context) error
}

// Emis persists vehicle loan installments.
type Emis interface {
	CreateEmiPayments(ctx context.Context, ps []model.EmiPayment) error
	GetEmiPayment(ctx context.Context, id uint64) (*model.EmiPayment, error)
	MarkEmiPaid(ctx context.Context, id uint64, paidAt time.Time) error
	ListEmiPayments(ctx context.Context, f EmiFilter) ([]model.EmiPayment, error)
	DeleteAllEmiPayments(ctx context.Context) error
}

// Tokens persists hashed refresh tokens.  ValidateRefresh returns
// ErrNotFound for unknown, revoked or expired tokens.
type Tokens interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeRefresh(ctx context.Context, tokenHash string) error
	RevokeAllRefresh(ctx context.Context, userID uint64) error
}

// Store is the full ledger.  WithinTx runs fn against a transactional
// view of the store; fn's writes commit together when it returns nil and
// are discarded otherwise.
type Store interface {
	Users
	Vehicles
	Journeys
	Expenses
	Payroll
	Emis
	Tokens
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
