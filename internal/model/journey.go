package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// JourneyStatus is the lifecycle state of a journey.  The only
// transitions are active → completed and active → cancelled.
type JourneyStatus string

const (
	JourneyActive    JourneyStatus = "active"
	JourneyCompleted JourneyStatus = "completed"
	JourneyCancelled JourneyStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s JourneyStatus) Terminal() bool {
	return s == JourneyCompleted || s == JourneyCancelled
}

// Journey is a single driver/vehicle trip with its cash pouch and
// expense trail.
//
// TotalExpenses and Balance are cached figures owned by the
// reconciliation engine.  They are rewritten after every expense
// mutation and every pouch/security edit and are never taken from
// client input.
//
// Fields:
//
//	ID              – primary key identifier.
//	DriverID        – driver running the journey.
//	VehicleID       – vehicle used.
//	LicensePlate    – plate copied from the vehicle when the journey started.
//	Destination     – free-text destination.
//	Pouch           – cash advance handed to the driver.
//	Security        – refundable deposit, reported as revenue only once completed.
//	Status          – active, completed or cancelled.
//	StartedAt       – journey start.
//	EndedAt         – completion or cancellation time.
//	CurrentLocation – last reported location (optional telemetry).
//	Speed           – last reported speed in km/h (optional telemetry).
//	Distance        – distance covered in km (optional telemetry).
//	TotalExpenses   – cached sum of cost expenses.
//	Balance         – cached pouch + top-ups − cost expenses.
type Journey struct {
	ID              uint64          `json:"id"`                         // journeys.id
	DriverID        uint64          `json:"driver_id"`                  // journeys.driver_id
	VehicleID       uint64          `json:"vehicle_id"`                 // journeys.vehicle_id
	LicensePlate    string          `json:"license_plate"`              // journeys.license_plate
	Destination     string          `json:"destination"`                // journeys.destination
	Pouch           decimal.Decimal `json:"pouch"`                      // journeys.pouch
	Security        decimal.Decimal `json:"security"`                   // journeys.security
	Status          JourneyStatus   `json:"status"`                     // journeys.status
	StartedAt       time.Time       `json:"started_at"`                 // journeys.started_at
	EndedAt         *time.Time      `json:"ended_at,omitempty"`         // journeys.ended_at (nullable)
	CurrentLocation *string         `json:"current_location,omitempty"` // journeys.current_location (nullable)
	Speed           *float64        `json:"speed,omitempty"`            // journeys.speed (nullable)
	Distance        *float64        `json:"distance,omitempty"`         // journeys.distance (nullable)
	TotalExpenses   decimal.Decimal `json:"total_expenses"`             // journeys.total_expenses
	Balance         decimal.Decimal `json:"balance"`                    // journeys.balance
	CreatedAt       time.Time       `json:"created_at"`                 // journeys.created_at
	UpdatedAt       time.Time       `json:"updated_at"`                 // journeys.updated_at
}

// Month returns the YYYY-MM bucket the journey belongs to for reporting.
func (j Journey) Month() string { return j.StartedAt.UTC().Format(MonthLayout) }

// MonthLayout is the layout of month tags on journeys, salary and EMI rows.
const MonthLayout = "2006-01"
