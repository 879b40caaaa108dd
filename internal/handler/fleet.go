package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/fleet-ledger/internal/service"
)

// FleetHandler serves user accounts and vehicles.
type FleetHandler struct {
	Fleet  *service.FleetService
	Logger logrus.FieldLogger
}

func NewFleetHandler(fleet *service.FleetService, logger logrus.FieldLogger) *FleetHandler {
	return &FleetHandler{Fleet: fleet, Logger: logger}
}

type createUserReq struct {
	Email         string `json:"email" validate:"required,email"`
	Name          string `json:"name" validate:"max=100"`
	Password      string `json:"password" validate:"required,min=8"`
	Role          string `json:"role" validate:"omitempty,oneof=admin driver"`
	MonthlySalary Amount `json:"monthly_salary"`
}

type updateUserReq struct {
	Name          *string `json:"name" validate:"omitempty,max=100"`
	Password      *string `json:"password" validate:"omitempty,min=8"`
	MonthlySalary *Amount `json:"monthly_salary"`
	IsActive      *bool   `json:"is_active"`
}

type createVehicleReq struct {
	LicensePlate string `json:"license_plate" validate:"required,max=32"`
	Model        string `json:"model" validate:"max=100"`
	MonthlyEmi   Amount `json:"monthly_emi"`
}

type updateVehicleReq struct {
	LicensePlate *string `json:"license_plate" validate:"omitempty,max=32"`
	Model        *string `json:"model" validate:"omitempty,max=100"`
	MonthlyEmi   *Amount `json:"monthly_emi"`
	Status       *string `json:"status" validate:"omitempty,oneof=available maintenance"`
}

// CreateUser handles POST /v1/users.
func (h *FleetHandler) CreateUser(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	var req createUserReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Fleet.CreateUser(ctx, actor, service.UserInput{
		Email:         req.Email,
		Name:          req.Name,
		Password:      req.Password,
		Role:          req.Role,
		MonthlySalary: string(req.MonthlySalary),
	})
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, u)
}

// ListUsers handles GET /v1/users?role=.
func (h *FleetHandler) ListUsers(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Fleet.ListUsers(ctx, actor, c.QueryParam("role"))
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetUser handles GET /v1/users/:id.
func (h *FleetHandler) GetUser(c echo.Context) error {
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
	u, err := h.Fleet.GetUser(ctx, actor, id)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, u)
}

// UpdateUser handles PATCH /v1/users/:id.
func (h *FleetHandler) UpdateUser(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	var req updateUserReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Fleet.UpdateUser(ctx, actor, id, service.UserPatch{
		Name:          req.Name,
		Password:      req.Password,
		MonthlySalary: req.MonthlySalary.ptr(),
		IsActive:      req.IsActive,
	})
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, u)
}

// CreateVehicle handles POST /v1/vehicles.
func (h *FleetHandler) CreateVehicle(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	var req createVehicleReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	v, err := h.Fleet.CreateVehicle(ctx, actor, service.VehicleInput{
		LicensePlate: req.LicensePlate,
		Model:        req.Model,
		MonthlyEmi:   string(req.MonthlyEmi),
	})
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, v)
}

// ListVehicles handles GET /v1/vehicles.  The route is response-cached.
func (h *FleetHandler) ListVehicles(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Fleet.ListVehicles(ctx, actor)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetVehicle handles GET /v1/vehicles/:id.
func (h *FleetHandler) GetVehicle(c echo.Context) error {
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
	v, err := h.Fleet.GetVehicle(ctx, actor, id)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, v)
}

// UpdateVehicle handles PATCH /v1/vehicles/:id.
func (h *FleetHandler) UpdateVehicle(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	var req updateVehicleReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	v, err := h.Fleet.UpdateVehicle(ctx, actor, id, service.VehiclePatch{
		LicensePlate: req.LicensePlate,
		Model:        req.Model,
		MonthlyEmi:   req.MonthlyEmi.ptr(),
		Status:       req.Status,
	})
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, v)
}

// DeleteVehicle handles DELETE /v1/vehicles/:id.
func (h *FleetHandler) DeleteVehicle(c echo.Context) error {
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
	if err := h.Fleet.DeleteVehicle(ctx, actor, id); err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}
