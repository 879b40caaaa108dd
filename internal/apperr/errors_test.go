package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/iliyamo/fleet-ledger/internal/ledger"
)

func TestFromStore(t *testing.T) {
	cases := []struct {
		in   error
		want Kind
	}{
		{ledger.ErrNotFound, KindNotFound},
		{fmt.Errorf("scan: %w", ledger.ErrNotFound), KindNotFound},
		{ledger.ErrDuplicate, KindConflict},
		{ledger.ErrInUse, KindConflict},
		{errors.New("connection refused"), KindPersistence},
		{Forbidden("nope"), KindForbidden},
	}
	for _, tc := range cases {
		got := FromStore("op", "vehicle", tc.in)
		if KindOf(got) != tc.want {
			t.Fatalf("FromStore(%v) kind = %v, want %v", tc.in, KindOf(got), tc.want)
		}
	}
	if FromStore("op", "x", nil) != nil {
		t.Fatalf("FromStore(nil) != nil")
	}
}

func TestErrorMessage(t *testing.T) {
	err := Validation(map[string]string{"amount": "money", "category": "required"})
	if got := err.Error(); got != "validation failed (amount: money, category: required)" {
		t.Fatalf("Error() = %q", got)
	}
	if !Is(err, KindValidation) || Is(err, KindConflict) {
		t.Fatalf("Is mismatch")
	}
	if !errors.Is(NotFound("journey"), ledger.ErrNotFound) {
		t.Fatalf("NotFound does not unwrap to ledger.ErrNotFound")
	}
}
