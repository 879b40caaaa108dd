// Package router registers the HTTP routes of the ledger API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fleet-ledger/internal/handler"
	"github.com/iliyamo/fleet-ledger/internal/middleware"
	"github.com/iliyamo/fleet-ledger/internal/model"
)

// Handlers groups everything the routes dispatch to.
type Handlers struct {
	Auth    *handler.AuthHandler
	Journey *handler.JourneyHandler
	Fleet   *handler.FleetHandler
	Finance *handler.FinanceHandler
	Health  echo.HandlerFunc
}

// Middlewares are the optional Redis-backed layers.  Nil entries are
// skipped.
type Middlewares struct {
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

func optional(mw echo.MiddlewareFunc) []echo.MiddlewareFunc {
	if mw == nil {
		return nil
	}
	return []echo.MiddlewareFunc{mw}
}

// RegisterRoutes registers routes that need no session: the health check.
func RegisterRoutes(e *echo.Echo, h Handlers) {
	e.GET("/healthz", h.Health)
}

// RegisterAuth registers login, refresh and logout under /v1/auth.  They
// are rate limited by client address since no identity exists yet.
func RegisterAuth(e *echo.Echo, h Handlers, mw Middlewares) {
	g := e.Group("/v1/auth", optional(mw.RateLimit)...)
	g.POST("/login", h.Auth.Login)
	g.POST("/refresh", h.Auth.Refresh)
	g.POST("/logout", h.Auth.Logout)
}

// RegisterAPI registers every authenticated /v1 route.  JWTAuth runs
// before the rate limiter so buckets are keyed by user.
func RegisterAPI(e *echo.Echo, h Handlers, mw Middlewares, jwtSecret string) {
	v1 := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	for _, m := range optional(mw.RateLimit) {
		v1.Use(m)
	}
	admin := middleware.RequireRole(model.RoleAdmin)

	// any role
	v1.GET("/me", h.Auth.Me)
	v1.GET("/me/summary", h.Finance.MySummary)
	v1.GET("/salary", h.Finance.ListSalary)
	v1.GET("/vehicles", h.Fleet.ListVehicles, optional(mw.Cache)...)

	v1.GET("/journeys", h.Journey.List)
	v1.POST("/journeys", h.Journey.Start)
	v1.GET("/journeys/:id", h.Journey.Get)
	v1.POST("/journeys/:id/complete", h.Journey.Complete)
	v1.PATCH("/journeys/:id/telemetry", h.Journey.UpdateTelemetry)
	v1.GET("/journeys/:id/expenses", h.Journey.ListExpenses)
	v1.POST("/journeys/:id/expenses", h.Journey.CreateExpense)

	// admin
	v1.PATCH("/journeys/:id/financials", h.Journey.UpdateFinancials, admin)
	v1.POST("/journeys/:id/cancel", h.Journey.Cancel, admin)
	v1.PUT("/expenses/:id", h.Journey.UpdateExpense, admin)
	v1.DELETE("/expenses/:id", h.Journey.DeleteExpense, admin)

	v1.POST("/users", h.Fleet.CreateUser, admin)
	v1.GET("/users", h.Fleet.ListUsers, admin)
	v1.GET("/users/:id", h.Fleet.GetUser, admin)
	v1.PATCH("/users/:id", h.Fleet.UpdateUser, admin)

	v1.POST("/vehicles", h.Fleet.CreateVehicle, admin)
	v1.GET("/vehicles/:id", h.Fleet.GetVehicle, admin)
	v1.PATCH("/vehicles/:id", h.Fleet.UpdateVehicle, admin)
	v1.DELETE("/vehicles/:id", h.Fleet.DeleteVehicle, admin)

	a := v1.Group("/admin", admin)
	a.GET("/financials", h.Finance.Summary)
	a.GET("/financials/monthly", h.Finance.Monthly)
	a.GET("/financials/export", h.Finance.Export)
	a.POST("/salary", h.Finance.RecordSalary)
	a.GET("/salary/balances", h.Finance.Balances)
	a.POST("/emi", h.Finance.ScheduleEmi)
	a.GET("/emi", h.Finance.ListEmi)
	a.POST("/emi/:id/pay", h.Finance.PayEmi)
	a.DELETE("/data/financial", h.Finance.ResetFinancial)
	a.DELETE("/data/salary", h.Finance.ResetSalary)
	a.DELETE("/data/emi", h.Finance.ResetEmi)
}
