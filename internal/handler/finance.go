package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/fleet-ledger/internal/config"
	"github.com/iliyamo/fleet-ledger/internal/finance"
	"github.com/iliyamo/fleet-ledger/internal/report"
	"github.com/iliyamo/fleet-ledger/internal/service"
)

// FinanceHandler serves reporting, payroll, EMI and the danger-zone
// resets.
type FinanceHandler struct {
	Finance *service.FinanceService
	Payroll *service.PayrollService
	Emi     *service.EmiService
	Logger  logrus.FieldLogger
}

func NewFinanceHandler(f *service.FinanceService, p *service.PayrollService, e *service.EmiService, logger logrus.FieldLogger) *FinanceHandler {
	return &FinanceHandler{Finance: f, Payroll: p, Emi: e, Logger: logger}
}

type salaryReq struct {
	UserID      uint64 `json:"user_id" validate:"required"`
	Amount      Amount `json:"amount" validate:"required"`
	Description string `json:"description" validate:"max=500"`
	Month       string `json:"month" validate:"omitempty,month"`
}

type emiScheduleReq struct {
	VehicleID uint64 `json:"vehicle_id" validate:"required"`
	Amount    Amount `json:"amount" validate:"omitempty,money"`
	FirstDue  string `json:"first_due" validate:"required,datetime=2006-01-02"`
	Count     int    `json:"count" validate:"required,gte=1,lte=120"`
}

func filterFrom(c echo.Context) finance.Filter {
	return finance.Filter{
		Vehicle:         c.QueryParam("vehicle"),
		Month:           c.QueryParam("month"),
		IncludeFleetEmi: queryBool(c, "include_fleet_emi"),
	}
}

// Summary handles GET /v1/admin/financials?vehicle=&month=&include_fleet_emi=.
func (h *FinanceHandler) Summary(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	sum, err := h.Finance.Summary(ctx, actor, filterFrom(c))
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, sum)
}

// Monthly handles GET /v1/admin/financials/monthly?vehicle=.
func (h *FinanceHandler) Monthly(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Finance.Monthly(ctx, actor, c.QueryParam("vehicle"), queryBool(c, "include_fleet_emi"))
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Export handles GET /v1/admin/financials/export and streams an xlsx
// workbook.
func (h *FinanceHandler) Export(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()
	data, err := h.Finance.Export(ctx, actor, filterFrom(c))
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	f, err := report.Financials(data.Summary, data.Journeys)
	if err != nil {
		config.LogError(h.Logger, "handler", "Export", "build workbook", nil, err)
		return respondError(c, h.Logger, err)
	}
	defer f.Close()

	c.Response().Header().Set(echo.HeaderContentType, report.ContentType)
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+report.Filename(data.Summary))
	c.Response().WriteHeader(http.StatusOK)
	return f.Write(c.Response())
}

// MySummary handles GET /v1/me/summary.  Admins may pass driver_id.
func (h *FinanceHandler) MySummary(c echo.Context) error {
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
	sum, err := h.Finance.DriverSummary(ctx, actor, driverID)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, sum)
}

// RecordSalary handles POST /v1/admin/salary.
func (h *FinanceHandler) RecordSalary(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	var req salaryReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Payroll.RecordSalary(ctx, actor, service.SalaryInput{
		UserID:      req.UserID,
		Amount:      string(req.Amount),
		Description: req.Description,
		Month:       req.Month,
	})
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// ListSalary handles GET /v1/salary?user_id=.  Drivers always get their
// own entries.
func (h *FinanceHandler) ListSalary(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	userID, err := queryID(c, "user_id")
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Payroll.ListSalary(ctx, actor, userID)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Balances handles GET /v1/admin/salary/balances?month=.
func (h *FinanceHandler) Balances(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Payroll.Balances(ctx, actor, c.QueryParam("month"))
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ScheduleEmi handles POST /v1/admin/emi.
func (h *FinanceHandler) ScheduleEmi(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	var req emiScheduleReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Emi.Schedule(ctx, actor, service.ScheduleInput{
		VehicleID: req.VehicleID,
		Amount:    string(req.Amount),
		FirstDue:  req.FirstDue,
		Count:     req.Count,
	})
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"items": items})
}

// ListEmi handles GET /v1/admin/emi?vehicle_id=&month=.
func (h *FinanceHandler) ListEmi(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	vehicleID, err := queryID(c, "vehicle_id")
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Emi.List(ctx, actor, service.EmiListInput{VehicleID: vehicleID, Month: c.QueryParam("month")})
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// PayEmi handles POST /v1/admin/emi/:id/pay.
func (h *FinanceHandler) PayEmi(c echo.Context) error {
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
	e, err := h.Emi.MarkPaid(ctx, actor, id)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, e)
}

// ResetFinancial handles DELETE /v1/admin/data/financial.
func (h *FinanceHandler) ResetFinancial(c echo.Context) error {
	return h.reset(c, h.Finance.ResetFinancialData)
}

// ResetSalary handles DELETE /v1/admin/data/salary.
func (h *FinanceHandler) ResetSalary(c echo.Context) error {
	return h.reset(c, h.Payroll.ResetSalary)
}

// ResetEmi handles DELETE /v1/admin/data/emi.
func (h *FinanceHandler) ResetEmi(c echo.Context) error {
	return h.reset(c, h.Emi.ResetEmi)
}

func (h *FinanceHandler) reset(c echo.Context, fn func(context.Context, service.Actor) error) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()
	if err := fn(ctx, actor); err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}
