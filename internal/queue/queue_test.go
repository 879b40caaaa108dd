package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func sampleEvent() LedgerEvent {
	return LedgerEvent{
		ID:         "3f0c",
		Type:       ExpenseCreated,
		OccurredAt: time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC),
		ActorID:    7,
		ActorRole:  "driver",
		JourneyID:  11,
		Attributes: map[string]string{"category": "fuel", "amount": "800.00"},
	}
}

func TestFormatLine(t *testing.T) {
	got := FormatLine(sampleEvent())
	want := `[2024-03-02T10:00:00Z] expense.created | id=3f0c | actor=7(driver) | journey_id=11 | amount="800.00" | category="fuel"` + "\n"
	if got != want {
		t.Fatalf("got  %q\nwant %q", got, want)
	}
}

func TestHandleAppends(t *testing.T) {
	dir := t.TempDir()
	a := &AuditConsumer{Dir: filepath.Join(dir, "audit"), Logger: logrus.New()}
	body, _ := json.Marshal(sampleEvent())
	for i := 0; i < 2; i++ {
		if err := a.Handle(body); err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}
	raw, err := os.ReadFile(filepath.Join(dir, "audit", AuditFile))
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(raw), "expense.created"); n != 2 {
		t.Fatalf("got %d lines, want 2", n)
	}
}

func TestHandleRejectsGarbage(t *testing.T) {
	a := &AuditConsumer{Dir: t.TempDir(), Logger: logrus.New()}
	if err := a.Handle([]byte("{")); err == nil {
		t.Fatal("expected unmarshal error")
	}
	if err := a.Handle([]byte(`{"type":"x"}`)); err == nil {
		t.Fatal("expected missing id error")
	}
}
