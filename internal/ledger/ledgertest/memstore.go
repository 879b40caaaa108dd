// Package ledgertest provides an in-memory ledger.Store for tests.
//
// The store behaves like the MySQL one where it matters to callers: unique
// emails and plates, foreign keys, cascades, and all-or-nothing
// transactions.  WithinTx works on a copy of the data and swaps it in
// only when fn succeeds.
package ledgertest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/fleet-ledger/internal/ledger"
	"github.com/iliyamo/fleet-ledger/internal/model"
)

type refresh struct {
	userID  uint64
	exp     time.Time
	revoked bool
}

type state struct {
	seq      uint64
	users    map[uint64]model.User
	vehicles map[uint64]model.Vehicle
	journeys map[uint64]model.Journey
	expenses map[uint64]model.Expense
	salary   map[uint64]model.SalaryPayment
	emis     map[uint64]model.EmiPayment
	tokens   map[string]refresh
}

func newState() *state {
	return &state{
		users:    map[uint64]model.User{},
		vehicles: map[uint64]model.Vehicle{},
		journeys: map[uint64]model.Journey{},
		expenses: map[uint64]model.Expense{},
		salary:   map[uint64]model.SalaryPayment{},
		emis:     map[uint64]model.EmiPayment{},
		tokens:   map[string]refresh{},
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		seq:      s.seq,
		users:    copyMap(s.users),
		vehicles: copyMap(s.vehicles),
		journeys: copyMap(s.journeys),
		expenses: copyMap(s.expenses),
		salary:   copyMap(s.salary),
		emis:     copyMap(s.emis),
		tokens:   copyMap(s.tokens),
	}
}

func (s *state) next() uint64 {
	s.seq++
	return s.seq
}

// MemStore is an in-memory ledger.Store.  The zero value is not usable;
// call New.
type MemStore struct {
	// Fail, when set, is consulted before every write with the method
	// name.  A non-nil result is returned instead of performing the write.
	Fail func(op string) error
	// Now stamps created/updated times.  Defaults to time.Now in UTC.
	Now func() time.Time

	mu   *sync.Mutex
	root *MemStore
	st   *state
	tx   bool
}

var _ ledger.Store = (*MemStore)(nil)

// New returns an empty store.
func New() *MemStore {
	m := &MemStore{mu: &sync.Mutex{}, st: newState()}
	m.root = m
	return m
}

// lock serializes access.  Inside a transaction the outer WithinTx already
// holds the mutex.
func (m *MemStore) lock() func() {
	if m.tx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *MemStore) fail(op string) error {
	if f := m.root.Fail; f != nil {
		return f(op)
	}
	return nil
}

func (m *MemStore) now() time.Time {
	if f := m.root.Now; f != nil {
		return f().UTC()
	}
	return time.Now().UTC()
}

// WithinTx runs fn on a private copy of the data and publishes it if fn
// returns nil.  Nested calls join the running transaction.
func (m *MemStore) WithinTx(ctx context.Context, fn func(tx ledger.Store) error) error {
	if m.tx {
		return fn(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &MemStore{mu: m.mu, root: m, st: m.st.clone(), tx: true}
	if err := fn(tx); err != nil {
		return err
	}
	m.st = tx.st
	return nil
}

// ---- users ----

func (m *MemStore) CreateUser(ctx context.Context, u *model.User) error {
	defer m.lock()()
	if err := m.fail("CreateUser"); err != nil {
		return err
	}
	for _, other := range m.st.users {
		if strings.EqualFold(other.Email, u.Email) {
			return fmt.Errorf("user %s: %w", u.Email, ledger.ErrDuplicate)
		}
	}
	u.ID = m.st.next()
	u.CreatedAt, u.UpdatedAt = m.now(), m.now()
	m.st.users[u.ID] = *u
	return nil
}

func (m *MemStore) GetUser(ctx context.Context, id uint64) (*model.User, error) {
	defer m.lock()()
	u, ok := m.st.users[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &u, nil
}

func (m *MemStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	defer m.lock()()
	for _, u := range m.st.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return &u, nil
		}
	}
	return nil, ledger.ErrNotFound
}

func (m *MemStore) ListUsers(ctx context.Context, role model.Role) ([]model.User, error) {
	defer m.lock()()
	out := []model.User{}
	for _, u := range m.st.users {
		if role == "" || u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) UpdateUser(ctx context.Context, u *model.User) error {
	defer m.lock()()
	if err := m.fail("UpdateUser"); err != nil {
		return err
	}
	cur, ok := m.st.users[u.ID]
	if !ok {
		return ledger.ErrNotFound
	}
	for id, other := range m.st.users {
		if id != u.ID && strings.EqualFold(other.Email, u.Email) {
			return fmt.Errorf("user %s: %w", u.Email, ledger.ErrDuplicate)
		}
	}
	u.CreatedAt = cur.CreatedAt
	u.UpdatedAt = m.now()
	m.st.users[u.ID] = *u
	return nil
}

// ---- vehicles ----

func (m *MemStore) plateTaken(plate string, except uint64) bool {
	for id, v := range m.st.vehicles {
		if id != except && strings.EqualFold(v.LicensePlate, plate) {
			return true
		}
	}
	return false
}

func (m *MemStore) CreateVehicle(ctx context.Context, v *model.Vehicle) error {
	defer m.lock()()
	if err := m.fail("CreateVehicle"); err != nil {
		return err
	}
	if m.plateTaken(v.LicensePlate, 0) {
		return fmt.Errorf("vehicle %s: %w", v.LicensePlate, ledger.ErrDuplicate)
	}
	if v.Status == "" {
		v.Status = model.VehicleAvailable
	}
	v.ID = m.st.next()
	v.CreatedAt, v.UpdatedAt = m.now(), m.now()
	m.st.vehicles[v.ID] = *v
	return nil
}

func (m *MemStore) GetVehicle(ctx context.Context, id uint64) (*model.Vehicle, error) {
	defer m.lock()()
	v, ok := m.st.vehicles[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &v, nil
}

func (m *MemStore) GetVehicleByPlate(ctx context.Context, plate string) (*model.Vehicle, error) {
	defer m.lock()()
	for _, v := range m.st.vehicles {
		if strings.EqualFold(v.LicensePlate, strings.TrimSpace(plate)) {
			return &v, nil
		}
	}
	return nil, ledger.ErrNotFound
}

func (m *MemStore) LockVehicle(ctx context.Context, id uint64) (*model.Vehicle, error) {
	return m.GetVehicle(ctx, id)
}

func (m *MemStore) ListVehicles(ctx context.Context) ([]model.Vehicle, error) {
	defer m.lock()()
	out := []model.Vehicle{}
	for _, v := range m.st.vehicles {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LicensePlate < out[j].LicensePlate })
	return out, nil
}

func (m *MemStore) UpdateVehicle(ctx context.Context, v *model.Vehicle) error {
	defer m.lock()()
	if err := m.fail("UpdateVehicle"); err != nil {
		return err
	}
	cur, ok := m.st.vehicles[v.ID]
	if !ok {
		return ledger.ErrNotFound
	}
	if m.plateTaken(v.LicensePlate, v.ID) {
		return fmt.Errorf("vehicle %s: %w", v.LicensePlate, ledger.ErrDuplicate)
	}
	v.CreatedAt = cur.CreatedAt
	v.UpdatedAt = m.now()
	m.st.vehicles[v.ID] = *v
	return nil
}

func (m *MemStore) SetVehicleStatus(ctx context.Context, id uint64, status model.VehicleStatus) error {
	defer m.lock()()
	if err := m.fail("SetVehicleStatus"); err != nil {
		return err
	}
	v, ok := m.st.vehicles[id]
	if !ok {
		return ledger.ErrNotFound
	}
	v.Status = status
	v.UpdatedAt = m.now()
	m.st.vehicles[id] = v
	return nil
}

func (m *MemStore) DeleteVehicle(ctx context.Context, id uint64) error {
	defer m.lock()()
	if err := m.fail("DeleteVehicle"); err != nil {
		return err
	}
	if _, ok := m.st.vehicles[id]; !ok {
		return ledger.ErrNotFound
	}
	for _, j := range m.st.journeys {
		if j.VehicleID == id {
			return fmt.Errorf("vehicle %d: %w", id, ledger.ErrInUse)
		}
	}
	delete(m.st.vehicles, id)
	for eid, e := range m.st.emis {
		if e.VehicleID == id {
			delete(m.st.emis, eid)
		}
	}
	return nil
}

func (m *MemStore) ResetVehicleStatuses(ctx context.Context) error {
	defer m.lock()()
	if err := m.fail("ResetVehicleStatuses"); err != nil {
		return err
	}
	for id, v := range m.st.vehicles {
		v.Status = model.VehicleAvailable
		v.UpdatedAt = m.now()
		m.st.vehicles[id] = v
	}
	return nil
}

// ---- journeys ----

func matchJourney(j model.Journey, f ledger.JourneyFilter) bool {
	if f.DriverID != 0 && j.DriverID != f.DriverID {
		return false
	}
	if f.LicensePlate != "" && !strings.EqualFold(j.LicensePlate, strings.TrimSpace(f.LicensePlate)) {
		return false
	}
	if f.Month != "" && j.Month() != f.Month {
		return false
	}
	if f.Status != "" && j.Status != f.Status {
		return false
	}
	return true
}

func (m *MemStore) CreateJourney(ctx context.Context, j *model.Journey) error {
	defer m.lock()()
	if err := m.fail("CreateJourney"); err != nil {
		return err
	}
	if _, ok := m.st.users[j.DriverID]; !ok {
		return fmt.Errorf("driver %d: %w", j.DriverID, ledger.ErrNotFound)
	}
	if _, ok := m.st.vehicles[j.VehicleID]; !ok {
		return fmt.Errorf("vehicle %d: %w", j.VehicleID, ledger.ErrNotFound)
	}
	j.ID = m.st.next()
	j.CreatedAt, j.UpdatedAt = m.now(), m.now()
	m.st.journeys[j.ID] = *j
	return nil
}

func (m *MemStore) GetJourney(ctx context.Context, id uint64) (*model.Journey, error) {
	defer m.lock()()
	j, ok := m.st.journeys[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &j, nil
}

func (m *MemStore) LockJourney(ctx context.Context, id uint64) (*model.Journey, error) {
	return m.GetJourney(ctx, id)
}

// ListJourneys returns matching journeys, newest first.
func (m *MemStore) ListJourneys(ctx context.Context, f ledger.JourneyFilter) ([]model.Journey, error) {
	defer m.lock()()
	out := []model.Journey{}
	for _, j := range m.st.journeys {
		if matchJourney(j, f) {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].StartedAt.Equal(out[k].StartedAt) {
			return out[i].StartedAt.After(out[k].StartedAt)
		}
		return out[i].ID > out[k].ID
	})
	return out, nil
}

func (m *MemStore) UpdateJourney(ctx context.Context, j *model.Journey) error {
	defer m.lock()()
	if err := m.fail("UpdateJourney"); err != nil {
		return err
	}
	cur, ok := m.st.journeys[j.ID]
	if !ok {
		return ledger.ErrNotFound
	}
	j.TotalExpenses, j.Balance = cur.TotalExpenses, cur.Balance
	j.CreatedAt = cur.CreatedAt
	j.UpdatedAt = m.now()
	m.st.journeys[j.ID] = *j
	return nil
}

func (m *MemStore) SetJourneyTotals(ctx context.Context, id uint64, totalExpenses, balance decimal.Decimal) error {
	defer m.lock()()
	if err := m.fail("SetJourneyTotals"); err != nil {
		return err
	}
	j, ok := m.st.journeys[id]
	if !ok {
		return ledger.ErrNotFound
	}
	j.TotalExpenses, j.Balance = totalExpenses, balance
	j.UpdatedAt = m.now()
	m.st.journeys[id] = j
	return nil
}

// DeleteAllJourneys removes every journey and, by cascade, every expense.
func (m *MemStore) DeleteAllJourneys(ctx context.Context) error {
	defer m.lock()()
	if err := m.fail("DeleteAllJourneys"); err != nil {
		return err
	}
	m.st.journeys = map[uint64]model.Journey{}
	m.st.expenses = map[uint64]model.Expense{}
	return nil
}

// ---- expenses ----

func (m *MemStore) CreateExpense(ctx context.Context, e *model.Expense) error {
	defer m.lock()()
	if err := m.fail("CreateExpense"); err != nil {
		return err
	}
	if _, ok := m.st.journeys[e.JourneyID]; !ok {
		return fmt.Errorf("journey %d: %w", e.JourneyID, ledger.ErrNotFound)
	}
	e.ID = m.st.next()
	e.CreatedAt, e.UpdatedAt = m.now(), m.now()
	m.st.expenses[e.ID] = *e
	return nil
}

func (m *MemStore) GetExpense(ctx context.Context, id uint64) (*model.Expense, error) {
	defer m.lock()()
	e, ok := m.st.expenses[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &e, nil
}

func (m *MemStore) UpdateExpense(ctx context.Context, e *model.Expense) error {
	defer m.lock()()
	if err := m.fail("UpdateExpense"); err != nil {
		return err
	}
	cur, ok := m.st.expenses[e.ID]
	if !ok {
		return ledger.ErrNotFound
	}
	e.JourneyID, e.CreatedBy, e.CreatedAt = cur.JourneyID, cur.CreatedBy, cur.CreatedAt
	e.UpdatedAt = m.now()
	m.st.expenses[e.ID] = *e
	return nil
}

func (m *MemStore) DeleteExpense(ctx context.Context, id uint64) error {
	defer m.lock()()
	if err := m.fail("DeleteExpense"); err != nil {
		return err
	}
	if _, ok := m.st.expenses[id]; !ok {
		return ledger.ErrNotFound
	}
	delete(m.st.expenses, id)
	return nil
}

func sortExpenses(out []model.Expense) {
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
}

func (m *MemStore) ListExpenses(ctx context.Context, journeyID uint64) ([]model.Expense, error) {
	return m.ListExpensesForRole(ctx, journeyID, model.RoleAdmin)
}

func (m *MemStore) ListExpensesForRole(ctx context.Context, journeyID uint64, role model.Role) ([]model.Expense, error) {
	defer m.lock()()
	out := []model.Expense{}
	for _, e := range m.st.expenses {
		if e.JourneyID != journeyID {
			continue
		}
		if e.IsCompanySecret && role != model.RoleAdmin {
			continue
		}
		out = append(out, e)
	}
	sortExpenses(out)
	return out, nil
}

// ListExpensesByCategory returns expenses of matching journeys.  An empty
// category list matches every category.
func (m *MemStore) ListExpensesByCategory(ctx context.Context, f ledger.JourneyFilter, categories []model.Category) ([]model.Expense, error) {
	defer m.lock()()
	want := map[model.Category]bool{}
	for _, c := range categories {
		want[c] = true
	}
	out := []model.Expense{}
	for _, e := range m.st.expenses {
		if len(want) > 0 && !want[e.Category] {
			continue
		}
		j, ok := m.st.journeys[e.JourneyID]
		if !ok || !matchJourney(j, f) {
			continue
		}
		out = append(out, e)
	}
	sortExpenses(out)
	return out, nil
}

// ---- payroll ----

func (m *MemStore) CreateSalaryPayment(ctx context.Context, p *model.SalaryPayment) error {
	defer m.lock()()
	if err := m.fail("CreateSalaryPayment"); err != nil {
		return err
	}
	if _, ok := m.st.users[p.UserID]; !ok {
		return fmt.Errorf("user %d: %w", p.UserID, ledger.ErrNotFound)
	}
	p.ID = m.st.next()
	p.CreatedAt = m.now()
	m.st.salary[p.ID] = *p
	return nil
}

func (m *MemStore) ListSalaryPayments(ctx context.Context, userID uint64) ([]model.SalaryPayment, error) {
	defer m.lock()()
	out := []model.SalaryPayment{}
	for _, p := range m.st.salary {
		if userID == 0 || p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month < out[j].Month
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemStore) DeleteAllSalaryPayments(ctx context.Context) error {
	defer m.lock()()
	if err := m.fail("DeleteAllSalaryPayments"); err != nil {
		return err
	}
	m.st.salary = map[uint64]model.SalaryPayment{}
	return nil
}

// ---- emi ----

func (m *MemStore) CreateEmiPayments(ctx context.Context, ps []model.EmiPayment) error {
	defer m.lock()()
	if err := m.fail("CreateEmiPayments"); err != nil {
		return err
	}
	for i := range ps {
		if _, ok := m.st.vehicles[ps[i].VehicleID]; !ok {
			return fmt.Errorf("vehicle %d: %w", ps[i].VehicleID, ledger.ErrNotFound)
		}
	}
	for i := range ps {
		ps[i].ID = m.st.next()
		ps[i].CreatedAt = m.now()
		if ps[i].Status == "" {
			ps[i].Status = model.EmiPending
		}
		m.st.emis[ps[i].ID] = ps[i]
	}
	return nil
}

func (m *MemStore) GetEmiPayment(ctx context.Context, id uint64) (*model.EmiPayment, error) {
	defer m.lock()()
	e, ok := m.st.emis[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &e, nil
}

func (m *MemStore) MarkEmiPaid(ctx context.Context, id uint64, paidAt time.Time) error {
	defer m.lock()()
	if err := m.fail("MarkEmiPaid"); err != nil {
		return err
	}
	e, ok := m.st.emis[id]
	if !ok {
		return ledger.ErrNotFound
	}
	at := paidAt.UTC()
	e.Status = model.EmiPaid
	e.PaidAt = &at
	m.st.emis[id] = e
	return nil
}

func (m *MemStore) ListEmiPayments(ctx context.Context, f ledger.EmiFilter) ([]model.EmiPayment, error) {
	defer m.lock()()
	out := []model.EmiPayment{}
	for _, e := range m.st.emis {
		if f.VehicleID != 0 && e.VehicleID != f.VehicleID {
			continue
		}
		if f.Month != "" && e.Month != f.Month {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemStore) DeleteAllEmiPayments(ctx context.Context) error {
	defer m.lock()()
	if err := m.fail("DeleteAllEmiPayments"); err != nil {
		return err
	}
	m.st.emis = map[uint64]model.EmiPayment{}
	return nil
}

// ---- refresh tokens ----

func (m *MemStore) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	defer m.lock()()
	if err := m.fail("StoreRefresh"); err != nil {
		return err
	}
	if _, ok := m.st.tokens[tokenHash]; ok {
		return ledger.ErrDuplicate
	}
	m.st.tokens[tokenHash] = refresh{userID: userID, exp: exp}
	return nil
}

func (m *MemStore) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	defer m.lock()()
	t, ok := m.st.tokens[tokenHash]
	if !ok || t.revoked || m.now().After(t.exp) {
		return 0, ledger.ErrNotFound
	}
	return t.userID, nil
}

func (m *MemStore) RevokeRefresh(ctx context.Context, tokenHash string) error {
	defer m.lock()()
	if t, ok := m.st.tokens[tokenHash]; ok {
		t.revoked = true
		m.st.tokens[tokenHash] = t
	}
	return nil
}

func (m *MemStore) RevokeAllRefresh(ctx context.Context, userID uint64) error {
	defer m.lock()()
	for h, t := range m.st.tokens {
		if t.userID == userID {
			t.revoked = true
			m.st.tokens[h] = t
		}
	}
	return nil
}
