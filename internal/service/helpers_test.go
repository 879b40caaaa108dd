package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/iliyamo/fleet-ledger/internal/ledger/ledgertest"
	"github.com/iliyamo/fleet-ledger/internal/model"
	"github.com/iliyamo/fleet-ledger/internal/queue"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []queue.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type countingCache struct{ n int }

func (c *countingCache) Invalidate(context.Context) error { c.n++; return nil }

type fixture struct {
	store    *ledgertest.MemStore
	pub      *recordingPublisher
	cache    *countingCache
	logs     *logtest.Hook
	rec      *Reconciler
	journeys *JourneyService
	expenses *ExpenseService
	finance  *FinanceService
	payroll  *PayrollService
	emi      *EmiService
	fleet    *FleetService

	admin   Actor
	driver  Actor
	other   Actor
	vehicle model.Vehicle
	clock   time.Time
}

var testNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, logs := logtest.NewNullLogger()

	f := &fixture{store: ledgertest.New(), pub: &recordingPublisher{}, cache: &countingCache{}, logs: logs, clock: testNow}
	f.store.Now = func() time.Time { return f.clock }
	deps := Deps{Store: f.store, Logger: logger, Events: f.pub, Cache: f.cache, Now: func() time.Time { return f.clock }}
	f.rec = NewReconciler(f.store, logger)
	f.journeys = NewJourneyService(deps, f.rec)
	f.expenses = NewExpenseService(deps, f.rec)
	f.finance = NewFinanceService(deps)
	f.payroll = NewPayrollService(deps)
	f.emi = NewEmiService(deps)
	f.fleet = NewFleetService(deps, 4)

	ctx := context.Background()
	mk := func(email string, role model.Role, salary string) Actor {
		u := model.User{Email: email, Name: email, Role: role, IsActive: true, MonthlySalary: d(salary)}
		if err := f.store.CreateUser(ctx, &u); err != nil {
			t.Fatalf("seed user %s: %v", email, err)
		}
		return Actor{UserID: u.ID, Role: role}
	}
	f.admin = mk("admin@fleet.test", model.RoleAdmin, "0")
	f.driver = mk("ravi@fleet.test", model.RoleDriver, "20000")
	f.other = mk("sam@fleet.test", model.RoleDriver, "18000")

	f.vehicle = f.addVehicle(t, "MH12AB1234", "0")
	return f
}

func (f *fixture) addVehicle(t *testing.T, plate, emi string) model.Vehicle {
	t.Helper()
	v, err := f.fleet.CreateVehicle(context.Background(), f.admin, VehicleInput{LicensePlate: plate, Model: "Tata 407", MonthlyEmi: emi})
	if err != nil {
		t.Fatalf("seed vehicle %s: %v", plate, err)
	}
	return *v
}

func (f *fixture) start(t *testing.T, actor Actor, vehicleID uint64, pouch, security string) model.Journey {
	t.Helper()
	j, err := f.journeys.Start(context.Background(), actor, StartJourneyInput{
		VehicleID: vehicleID, Destination: "Hyderabad", Pouch: pouch, Security: security,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return *j
}

func (f *fixture) spend(t *testing.T, actor Actor, journeyID uint64, category, amount string) *ExpenseResult {
	t.Helper()
	r, err := f.expenses.Create(context.Background(), actor, journeyID, ExpenseInput{Category: category, Amount: amount})
	if err != nil {
		t.Fatalf("Create %s %s: %v", category, amount, err)
	}
	return r
}

// errorLines counts the error-level entries logged so far.
func (f *fixture) errorLines() int {
	n := 0
	for _, e := range f.logs.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			n++
		}
	}
	return n
}
