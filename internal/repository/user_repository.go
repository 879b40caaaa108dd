package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/fleet-ledger/internal/model"
)

// UserRepo persists the 'users' table.
type UserRepo struct{ q querier }

const userCols = "id,email,name,password_hash,role,monthly_salary,is_active,created_at,updated_at"

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role,
		&u.MonthlySalary, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// CreateUser inserts u (email normalized) and fills its ID and timestamps.
func (r *UserRepo) CreateUser(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO users (email,name,password_hash,role,monthly_salary,is_active) VALUES (?,?,?,?,?,?)",
		u.Email, u.Name, u.PasswordHash, u.Role, u.MonthlySalary, u.IsActive)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := r.GetUser(ctx, uint64(id))
	if err != nil {
		return err
	}
	*u = *got
	return nil
}

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, id uint64) (*model.User, error) {
	return scanUser(r.q.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE id=? LIMIT 1", id))
}

// GetUserByEmail fetches a user by normalized email.
func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.q.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE email=? LIMIT 1", email))
}

// ListUsers returns all users, or only those with the given role.
func (r *UserRepo) ListUsers(ctx context.Context, role model.Role) ([]model.User, error) {
	q := "SELECT " + userCols + " FROM users"
	var args []any
	if role != "" {
		q += " WHERE role=?"
		args = append(args, role)
	}
	rows, err := r.q.QueryContext(ctx, q+" ORDER BY id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// UpdateUser writes the mutable profile columns.
func (r *UserRepo) UpdateUser(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return affected(r.q.ExecContext(ctx,
		"UPDATE users SET email=?, name=?, password_hash=?, role=?, monthly_salary=?, is_active=? WHERE id=?",
		u.Email, u.Name, u.PasswordHash, u.Role, u.MonthlySalary, u.IsActive, u.ID))
}
