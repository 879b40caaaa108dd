package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category is the expense category.  The set is open in storage, but
// the financial meaning of a category only ever comes from the
// classification table in package finance; unknown values are plain
// costs.
type Category string

const (
	CategoryFuel        Category = "fuel"
	CategoryToll        Category = "toll"
	CategoryLoading     Category = "loading"
	CategoryUnloading   Category = "unloading"
	CategoryMaintenance Category = "maintenance"
	CategoryRepair      Category = "repair"
	CategoryFood        Category = "food"
	CategoryParking     Category = "parking"
	CategoryOther       Category = "other"
	CategoryHydInward   Category = "hyd_inward"
	CategoryTopUp       Category = "top_up"
)

// ParseCategory normalizes user input into a category key: trimmed,
// lower-cased, with spaces and hyphens folded into underscores.
func ParseCategory(s string) Category {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return Category(s)
}

// Expense is a single cost or revenue-like row recorded against a
// journey.
//
// Fields:
//
//	ID              – primary key identifier.
//	JourneyID       – owning journey; rows are deleted with it.
//	Category        – expense category.
//	Amount          – positive amount with at most two decimals.
//	Description     – free text.
//	IsCompanySecret – hidden from driver reads (toll, hyd_inward).
//	CreatedBy       – user who recorded the row.
//	CreatedAt       – timestamp of creation.
type Expense struct {
	ID              uint64          `json:"id"`                // expenses.id
	JourneyID       uint64          `json:"journey_id"`        // expenses.journey_id
	Category        Category        `json:"category"`          // expenses.category
	Amount          decimal.Decimal `json:"amount"`            // expenses.amount
	Description     string          `json:"description"`       // expenses.description
	IsCompanySecret bool            `json:"is_company_secret"` // expenses.is_company_secret
	CreatedBy       uint64          `json:"created_by"`        // expenses.created_by
	CreatedAt       time.Time       `json:"created_at"`        // expenses.created_at
	UpdatedAt       time.Time       `json:"updated_at"`        // expenses.updated_at
}
