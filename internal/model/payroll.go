package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalaryPayment is a signed salary ledger entry.  A positive amount is a
// payment or advance to the user (a company cost); a negative amount is
// a debt or clawback (credited back to profit).  Entries are immutable;
// only the bulk reset removes them.
type SalaryPayment struct {
	ID          uint64          `json:"id"`          // salary_payments.id
	UserID      uint64          `json:"user_id"`     // salary_payments.user_id
	Amount      decimal.Decimal `json:"amount"`      // salary_payments.amount
	Description string          `json:"description"` // salary_payments.description
	Month       string          `json:"month"`       // salary_payments.month (YYYY-MM)
	CreatedAt   time.Time       `json:"created_at"`  // salary_payments.created_at
}

// EmiStatus is the state of an EMI installment.  Only pending and paid
// are stored; overdue is derived when the row is read.
type EmiStatus string

const (
	EmiPending EmiStatus = "pending"
	EmiPaid    EmiStatus = "paid"
	EmiOverdue EmiStatus = "overdue"
)

// EmiPayment is one scheduled loan installment for a vehicle.
type EmiPayment struct {
	ID        uint64          `json:"id"`                // emi_payments.id
	VehicleID uint64          `json:"vehicle_id"`        // emi_payments.vehicle_id
	Amount    decimal.Decimal `json:"amount"`            // emi_payments.amount
	DueDate   time.Time       `json:"due_date"`          // emi_payments.due_date
	Month     string          `json:"month"`             // emi_payments.month (YYYY-MM)
	Status    EmiStatus       `json:"status"`            // emi_payments.status
	PaidAt    *time.Time      `json:"paid_at,omitempty"` // emi_payments.paid_at (nullable)
	CreatedAt time.Time       `json:"created_at"`        // emi_payments.created_at
}

// EffectiveStatus returns the status as seen at now: a pending
// installment whose due date has passed reads as overdue.
func (e EmiPayment) EffectiveStatus(now time.Time) EmiStatus {
	if e.Status == EmiPending && e.DueDate.Before(now) {
		return EmiOverdue
	}
	return e.Status
}
