// Package apperr is the error taxonomy shared by services and handlers.
// Services return *Error values; handlers translate the Kind into an HTTP
// status.  Anything that is not an *Error is treated as a persistence
// failure.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/iliyamo/fleet-ledger/internal/ledger"
)

// Kind classifies a failure.
type Kind uint8

const (
	KindPersistence Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	}
	return "persistence"
}

// Error carries the kind, a client-safe message, the offending fields for
// validation failures and the wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: %s", k, e.Fields[k])
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports malformed input, keyed by field.
func Validation(fields map[string]string) error {
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

// Invalid is Validation for a single field.
func Invalid(field, reason string) error {
	return Validation(map[string]string{field: reason})
}

// NotFound reports a missing row, e.g. NotFound("journey").
func NotFound(what string) error {
	return &Error{Kind: KindNotFound, Message: what + " not found", Err: ledger.ErrNotFound}
}

// Conflict reports a state that forbids the operation.
func Conflict(msg string) error {
	return &Error{Kind: KindConflict, Message: msg}
}

// Forbidden reports a role or ownership violation.
func Forbidden(msg string) error {
	return &Error{Kind: KindForbidden, Message: msg}
}

// Persistence wraps a store failure.  The operation must be treated as
// not applied.
func Persistence(op string, err error) error {
	return &Error{Kind: KindPersistence, Message: op + " failed", Err: err}
}

// FromStore translates ledger sentinels into the taxonomy.  what names
// the entity for not-found and duplicate messages.
func FromStore(op, what string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return NotFound(what)
	case errors.Is(err, ledger.ErrDuplicate):
		return &Error{Kind: KindConflict, Message: what + " already exists", Err: err}
	case errors.Is(err, ledger.ErrInUse):
		return &Error{Kind: KindConflict, Message: what + " is still referenced", Err: err}
	}
	return Persistence(op, err)
}

// KindOf returns the kind of err, KindPersistence for foreign errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindPersistence
}

// Is reports whether err is an *Error of kind k.
func Is(err error, k Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == k
}
