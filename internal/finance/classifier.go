// Package finance holds the money rules of the fleet ledger: how an
// expense category is treated, how a journey's cached balance is
// derived, and how fleet-wide figures are rolled up.  Everything here is
// pure and deterministic; callers load snapshots from the ledger store
// and hand them in.
package finance

import (
	"regexp"
	"sort"

	"github.com/iliyamo/fleet-ledger/internal/model"
)

// Treatment is how an expense row affects the books.
type Treatment uint8

const (
	// TreatCost rows are subtracted from the journey balance.
	TreatCost Treatment = iota
	// TreatTopUp rows are cash added to the pouch mid-journey.
	TreatTopUp
	// TreatInward rows are inward freight revenue reported at fleet level.
	TreatInward
)

func (t Treatment) String() string {
	switch t {
	case TreatTopUp:
		return "top_up"
	case TreatInward:
		return "inward"
	}
	return "cost"
}

// Classification is the result of classifying a category.
type Classification struct {
	Treatment Treatment
	Secret    bool // admin-only, hidden from driver reads
}

// IsRevenue reports whether the row represents incoming cash.
func (c Classification) IsRevenue() bool { return c.Treatment != TreatCost }

// DriverVisible reports whether a driver may see the row.
func (c Classification) DriverVisible() bool { return !c.Secret }

var classifications = map[model.Category]Classification{
	model.CategoryFuel:        {Treatment: TreatCost},
	model.CategoryToll:        {Treatment: TreatCost, Secret: true},
	model.CategoryLoading:     {Treatment: TreatCost},
	model.CategoryUnloading:   {Treatment: TreatCost},
	model.CategoryMaintenance: {Treatment: TreatCost},
	model.CategoryRepair:      {Treatment: TreatCost},
	model.CategoryFood:        {Treatment: TreatCost},
	model.CategoryParking:     {Treatment: TreatCost},
	model.CategoryOther:       {Treatment: TreatCost},
	model.CategoryHydInward:   {Treatment: TreatInward, Secret: true},
	model.CategoryTopUp:       {Treatment: TreatTopUp},
}

// Classify returns the treatment and visibility of a category.  It is
// total: categories missing from the table are plain, driver-visible
// costs.
func Classify(c model.Category) Classification {
	if cl, ok := classifications[model.ParseCategory(string(c))]; ok {
		return cl
	}
	return Classification{Treatment: TreatCost}
}

var categoryPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,31}$`)

// WellFormed reports whether c, after normalization, can be stored as a
// category: a lowercase identifier of at most 32 characters.
func WellFormed(c model.Category) bool {
	return categoryPattern.MatchString(string(model.ParseCategory(string(c))))
}

// Known reports whether the category has its own row in the table.
func Known(c model.Category) bool {
	_, ok := classifications[model.ParseCategory(string(c))]
	return ok
}

// VisibleTo reports whether a user with the given role may read rows of
// the category.
func VisibleTo(role model.Role, c model.Category) bool {
	return role == model.RoleAdmin || Classify(c).DriverVisible()
}

// RevenueCategories lists the revenue-like categories in a stable order.
func RevenueCategories() []model.Category {
	return collect(func(cl Classification) bool { return cl.IsRevenue() })
}

// SecretCategories lists the admin-only categories in a stable order.
func SecretCategories() []model.Category {
	return collect(func(cl Classification) bool { return cl.Secret })
}

// Categories lists every category in the table.
func Categories() []model.Category {
	return collect(func(Classification) bool { return true })
}

func collect(keep func(Classification) bool) []model.Category {
	out := make([]model.Category, 0, len(classifications))
	for c, cl := range classifications {
		if keep(cl) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
