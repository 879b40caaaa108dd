package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// VehicleStatus is the availability state of a vehicle.
type VehicleStatus string

const (
	VehicleAvailable   VehicleStatus = "available"
	VehicleInUse       VehicleStatus = "in_use"
	VehicleMaintenance VehicleStatus = "maintenance"
)

// Valid reports whether s is a known vehicle status.
func (s VehicleStatus) Valid() bool {
	switch s {
	case VehicleAvailable, VehicleInUse, VehicleMaintenance:
		return true
	}
	return false
}

// NormalizePlate is the stored form of a license plate: upper case with
// all whitespace removed.  Plates are compared in this form everywhere.
func NormalizePlate(p string) string {
	return strings.ToUpper(strings.Join(strings.Fields(p), ""))
}

// Vehicle is a truck in the fleet.  A vehicle moves to in_use when a
// journey starts on it and back to available when that journey ends.
// Admins may park it in maintenance while it is not in use.
//
// Fields:
//
//	ID           – primary key identifier.
//	LicensePlate – unique plate, copied onto journeys at creation.
//	Model        – free-text make/model.
//	Status       – available, in_use or maintenance.
//	MonthlyEmi   – baseline loan installment used when scheduling EMIs.
type Vehicle struct {
	ID           uint64          `json:"id"`            // vehicles.id
	LicensePlate string          `json:"license_plate"` // vehicles.license_plate
	Model        string          `json:"model"`         // vehicles.model
	Status       VehicleStatus   `json:"status"`        // vehicles.status
	MonthlyEmi   decimal.Decimal `json:"monthly_emi"`   // vehicles.monthly_emi
	CreatedAt    time.Time       `json:"created_at"`    // vehicles.created_at
	UpdatedAt    time.Time       `json:"updated_at"`    // vehicles.updated_at
}
