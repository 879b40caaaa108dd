package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role is the authorization role carried in the access token.  Only two
// roles exist: administrators manage the fleet and its money, drivers run
// journeys and record their own expenses.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleDriver Role = "driver"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r == RoleAdmin || r == RoleDriver }

// User represents an application user record as stored in the `users`
// table.
//
// Fields:
//
//	ID            – primary key identifier of the user.
//	Email         – unique login address.
//	Name          – display name.
//	PasswordHash  – bcrypt hashed password, never serialized.
//	Role          – admin or driver.
//	MonthlySalary – baseline salary used by payroll balances.
//	IsActive      – inactive users cannot log in or start journeys.
//	CreatedAt     – timestamp of creation.
//	UpdatedAt     – timestamp of last update.
type User struct {
	ID            uint64          `json:"id"`             // users.id
	Email         string          `json:"email"`          // users.email
	Name          string          `json:"name"`           // users.name
	PasswordHash  string          `json:"-"`              // users.password_hash
	Role          Role            `json:"role"`           // users.role
	MonthlySalary decimal.Decimal `json:"monthly_salary"` // users.monthly_salary
	IsActive      bool            `json:"is_active"`      // users.is_active
	CreatedAt     time.Time       `json:"created_at"`     // users.created_at
	UpdatedAt     time.Time       `json:"updated_at"`     // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and contains metadata for expiry
// and revocation.  The plain token is not stored; only its
// SHA‑256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
