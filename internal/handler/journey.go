package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/fleet-ledger/internal/model"
	"github.com/iliyamo/fleet-ledger/internal/service"
)

// JourneyHandler serves journeys and their expenses.
type JourneyHandler struct {
	Journeys *service.JourneyService
	Expenses *service.ExpenseService
	Logger   logrus.FieldLogger
}

func NewJourneyHandler(j *service.JourneyService, e *service.ExpenseService, logger logrus.FieldLogger) *JourneyHandler {
	return &JourneyHandler{Journeys: j, Expenses: e, Logger: logger}
}

type startJourneyReq struct {
	DriverID    uint64 `json:"driver_id"`
	VehicleID   uint64 `json:"vehicle_id" validate:"required"`
	Destination string `json:"destination" validate:"required,max=255"`
	Pouch       Amount `json:"pouch"`
	Security    Amount `json:"security"`
}

type financialsReq struct {
	Pouch    *Amount `json:"pouch"`
	Security *Amount `json:"security"`
}

type telemetryReq struct {
	CurrentLocation *string  `json:"current_location" validate:"omitempty,max=255"`
	Speed           *float64 `json:"speed" validate:"omitempty,gte=0"`
	Distance        *float64 `json:"distance" validate:"omitempty,gte=0"`
}

type expenseReq struct {
	Category    string `json:"category" validate:"required,max=32"`
	Amount      Amount `json:"amount" validate:"required,money"`
	Description string `json:"description" validate:"max=500"`
}

func (r expenseReq) input() service.ExpenseInput {
	return service.ExpenseInput{Category: r.Category, Amount: string(r.Amount), Description: r.Description}
}

// Start handles POST /v1/journeys.
func (h *JourneyHandler) Start(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	var req startJourneyReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	j, err := h.Journeys.Start(ctx, actor, service.StartJourneyInput{
		DriverID:    req.DriverID,
		VehicleID:   req.VehicleID,
		Destination: req.Destination,
		Pouch:       string(req.Pouch),
		Security:    string(req.Security),
	})
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, j)
}

// List handles GET /v1/journeys?driver_id=&vehicle=&month=&status=.
func (h *JourneyHandler) List(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	driverID, err := queryID(c, "driver_id")
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Journeys.List(ctx, actor, service.JourneyListInput{
		DriverID: driverID,
		Vehicle:  c.QueryParam("vehicle"),
		Month:    c.QueryParam("month"),
		Status:   c.QueryParam("status"),
	})
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/journeys/:id.
func (h *JourneyHandler) Get(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	detail, err := h.Journeys.Get(ctx, actor, id)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, detail)
}

// Complete handles POST /v1/journeys/:id/complete.
func (h *JourneyHandler) Complete(c echo.Context) error {
	return h.transition(c, h.Journeys.Complete)
}

// Cancel handles POST /v1/journeys/:id/cancel.
func (h *JourneyHandler) Cancel(c echo.Context) error {
	return h.transition(c, h.Journeys.Cancel)
}

func (h *JourneyHandler) transition(c echo.Context, fn func(context.Context, service.Actor, uint64) (*model.Journey, error)) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	j, err := fn(ctx, actor, id)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, j)
}

// UpdateFinancials handles PATCH /v1/journeys/:id/financials.
func (h *JourneyHandler) UpdateFinancials(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	var req financialsReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	j, err := h.Journeys.UpdateFinancials(ctx, actor, id, service.FinancialsInput{
		Pouch:    req.Pouch.ptr(),
		Security: req.Security.ptr(),
	})
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, j)
}

// UpdateTelemetry handles PATCH /v1/journeys/:id/telemetry.
func (h *JourneyHandler) UpdateTelemetry(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	var req telemetryReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	j, err := h.Journeys.UpdateTelemetry(ctx, actor, id, service.TelemetryInput{
		CurrentLocation: req.CurrentLocation,
		Speed:           req.Speed,
		Distance:        req.Distance,
	})
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, j)
}

// ListExpenses handles GET /v1/journeys/:id/expenses.
func (h *JourneyHandler) ListExpenses(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Expenses.List(ctx, actor, id)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// CreateExpense handles POST /v1/journeys/:id/expenses.  The response
// carries the reconciled journey.
func (h *JourneyHandler) CreateExpense(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	var req expenseReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Expenses.Create(ctx, actor, id, req.input())
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, out)
}

// UpdateExpense handles PUT /v1/expenses/:id.
func (h *JourneyHandler) UpdateExpense(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	var req expenseReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Expenses.Update(ctx, actor, id, req.input())
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, out)
}

// DeleteExpense handles DELETE /v1/expenses/:id and returns the
// reconciled journey.
func (h *JourneyHandler) DeleteExpense(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	j, err := h.Expenses.Delete(ctx, actor, id)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"journey": j})
}
