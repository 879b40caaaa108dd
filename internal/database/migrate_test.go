package database

import (
	"strings"
	"testing"
)

func TestStatements(t *testing.T) {
	stmts := Statements()
	want := []string{"users", "refresh_tokens", "vehicles", "journeys", "expenses", "salary_payments", "emi_payments"}
	if len(stmts) != len(want) {
		t.Fatalf("got %d statements, want %d", len(stmts), len(want))
	}
	for i, table := range want {
		if !strings.HasPrefix(stmts[i], "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Fatalf("statement %d does not create %s: %.60q", i+1, table, stmts[i])
		}
	}
}
