package model

import "github.com/shopspring/decimal"

// FinancialSummary is the fleet roll-up returned by the aggregator.  All
// figures are recomputed from the ledger on every call.
type FinancialSummary struct {
	Vehicle          string          `json:"vehicle,omitempty"`
	Month            string          `json:"month,omitempty"`
	JourneyRevenue   decimal.Decimal `json:"journey_revenue"`
	SecurityDeposits decimal.Decimal `json:"security_deposits"`
	HydInwardRevenue decimal.Decimal `json:"hyd_inward_revenue"`
	TopUpRevenue     decimal.Decimal `json:"top_up_revenue"`
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	TotalExpenses    decimal.Decimal `json:"total_expenses"`
	SalaryPayments   decimal.Decimal `json:"salary_payments"`
	SalaryDebts      decimal.Decimal `json:"salary_debts"`
	EmiPayments      decimal.Decimal `json:"emi_payments"`
	NetProfit        decimal.Decimal `json:"net_profit"`
	JourneyCount     int             `json:"journey_count"`
}

// DriverSummary is a driver's own view of their journeys.  It never
// includes company-secret rows.
type DriverSummary struct {
	DriverID          uint64          `json:"driver_id"`
	ActiveJourneys    int             `json:"active_journeys"`
	CompletedJourneys int             `json:"completed_journeys"`
	TotalPouch        decimal.Decimal `json:"total_pouch"`
	VisibleExpenses   decimal.Decimal `json:"visible_expenses"`
	TotalBalance      decimal.Decimal `json:"total_balance"`
	SecurityRefunds   decimal.Decimal `json:"security_refunds"`
}

// PayrollBalance is one user's salary position for a month.
type PayrollBalance struct {
	UserID      uint64          `json:"user_id"`
	Name        string          `json:"name"`
	Month       string          `json:"month"`
	Baseline    decimal.Decimal `json:"baseline"`
	Paid        decimal.Decimal `json:"paid"`
	Debts       decimal.Decimal `json:"debts"`
	Outstanding decimal.Decimal `json:"outstanding"`
}
