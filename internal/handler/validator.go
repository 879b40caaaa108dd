package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/fleet-ledger/internal/finance"
)

// Amount is a money value as sent by clients.  Both JSON numbers and
// JSON strings are accepted; the literal text is kept so the services
// parse it exactly, without a float round trip.
type Amount string

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("amount must be a number or a decimal string")
	}
	*a = Amount(n.String())
	return nil
}

// ptr converts an optional amount into the *string the services take.
func (a *Amount) ptr() *string {
	if a == nil {
		return nil
	}
	s := string(*a)
	return &s
}

// RequestValidator plugs go-playground/validator into Echo's c.Validate.
type RequestValidator struct {
	v *validator.Validate
}

// NewValidator builds the validator with the ledger's custom tags:
//
//	money  positive, at most two decimals
//	month  YYYY-MM
func NewValidator() *RequestValidator {
	v := validator.New()
	// report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		_, err := finance.ParseAmount(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("month", func(fl validator.FieldLevel) bool {
		return finance.ValidMonth(fl.Field().String())
	})
	return &RequestValidator{v: v}
}

func (rv *RequestValidator) Validate(i interface{}) error {
	return rv.v.Struct(i)
}

// ProcessValidationErrors maps validator failures to {field: tag}.
func ProcessValidationErrors(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return map[string]string{"body": err.Error()}
	}
	out := make(map[string]string, len(validationErrors))
	for _, ve := range validationErrors {
		out[ve.Field()] = ve.Tag()
	}
	return out
}
