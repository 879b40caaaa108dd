package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/fleet-ledger/internal/apperr"
	"github.com/iliyamo/fleet-ledger/internal/middleware"
	"github.com/iliyamo/fleet-ledger/internal/service"
)

// requestTimeout bounds the store work behind one request.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

var errUnauthenticated = errors.New("unauthenticated")

// actorOf returns the caller established by JWTAuth.
func actorOf(c echo.Context) (service.Actor, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return service.Actor{}, errUnauthenticated
	}
	return service.Actor{UserID: id, Role: middleware.Role(c)}, nil
}

// bind decodes the body and runs the struct validator.  Both failures
// come back as validation errors.
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return apperr.Invalid("body", "invalid JSON body")
	}
	if err := c.Validate(req); err != nil {
		return apperr.Validation(ProcessValidationErrors(err))
	}
	return nil
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Invalid(name, "must be a positive integer")
	}
	return id, nil
}

// queryID parses an optional positive integer query parameter; absent is 0.
func queryID(c echo.Context, name string) (uint64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apperr.Invalid(name, "must be a positive integer")
	}
	return id, nil
}

func queryBool(c echo.Context, name string) bool {
	b, _ := strconv.ParseBool(c.QueryParam(name))
	return b
}

// respondError writes err as {"error": ..., "fields": ...} with the
// status its kind maps to.  Errors that are not *apperr.Error are
// internal failures and are logged.
func respondError(c echo.Context, logger logrus.FieldLogger, err error) error {
	if errors.Is(err, errUnauthenticated) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		if logger != nil {
			logger.WithFields(logrus.Fields{
				"method": c.Request().Method,
				"path":   c.Path(),
			}).WithError(err).Error("unhandled error")
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	body := echo.Map{"error": ae.Message}
	if len(ae.Fields) > 0 {
		body["fields"] = ae.Fields
	}
	return c.JSON(statusOf(ae.Kind), body)
}

func statusOf(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}
