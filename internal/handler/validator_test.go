package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fleet-ledger/internal/apperr"
)

func TestAmountUnmarshal(t *testing.T) {
	cases := []struct {
		in      string
		want    Amount
		wantErr bool
	}{
		{`{"amount": 800}`, "800", false},
		{`{"amount": 12.5}`, "12.5", false},
		{`{"amount": " 99.90 "}`, "99.90", false},
		{`{"amount": null}`, "", false},
		{`{}`, "", false},
		{`{"amount": true}`, "", true},
	}
	for _, tc := range cases {
		var v struct {
			Amount Amount `json:"amount"`
		}
		err := json.Unmarshal([]byte(tc.in), &v)
		if (err != nil) != tc.wantErr {
			t.Fatalf("%s: err = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if err == nil && v.Amount != tc.want {
			t.Errorf("%s: got %q, want %q", tc.in, v.Amount, tc.want)
		}
	}

	var patch struct {
		Amount *Amount `json:"amount"`
	}
	if err := json.Unmarshal([]byte(`{}`), &patch); err != nil || patch.Amount.ptr() != nil {
		t.Fatalf("absent optional amount should stay nil")
	}
	if err := json.Unmarshal([]byte(`{"amount": 2000}`), &patch); err != nil || *patch.Amount.ptr() != "2000" {
		t.Fatalf("optional amount = %v, %v", patch.Amount, err)
	}
}

func TestValidatorCustomTags(t *testing.T) {
	v := NewValidator()
	type req struct {
		Amount Amount `json:"amount" validate:"required,money"`
		Month  string `json:"month" validate:"omitempty,month"`
	}

	if err := v.Validate(&req{Amount: "10.50", Month: "2024-02"}); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}
	fields := ProcessValidationErrors(v.Validate(&req{Amount: "1.005", Month: "2024-13"}))
	if fields["amount"] != "money" || fields["month"] != "month" {
		t.Fatalf("fields = %v", fields)
	}
	fields = ProcessValidationErrors(v.Validate(&req{}))
	if fields["amount"] != "required" {
		t.Fatalf("fields = %v", fields)
	}
	if got := ProcessValidationErrors(errors.New("boom")); got["body"] != "boom" {
		t.Fatalf("non-validator error = %v", got)
	}
}

func TestRespondErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{apperr.Invalid("amount", "must be positive"), http.StatusBadRequest},
		{apperr.NotFound("journey"), http.StatusNotFound},
		{apperr.Conflict("vehicle is in use"), http.StatusConflict},
		{apperr.Forbidden("only admins may delete expenses"), http.StatusForbidden},
		{apperr.Persistence("list journeys", errors.New("db down")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
		{errUnauthenticated, http.StatusUnauthorized},
	}
	e := echo.New()
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		if err := respondError(c, nil, tc.err); err != nil {
			t.Fatalf("respondError: %v", err)
		}
		if rec.Code != tc.code {
			t.Errorf("%v: status %d, want %d", tc.err, rec.Code, tc.code)
		}
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	_ = respondError(c, nil, apperr.Invalid("amount", "must be positive"))
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Fields["amount"] != "must be positive" {
		t.Fatalf("body = %s", rec.Body.String())
	}
}
