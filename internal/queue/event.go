// Package queue defines the ledger events exchanged over RabbitMQ and the
// audit consumer that records them.
package queue

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// LedgerQueueName is the durable queue every ledger event is routed to.
const LedgerQueueName = "fleet.ledger"

// EventType names what happened to the ledger.
type EventType string

const (
	JourneyStarted           EventType = "journey.started"
	JourneyCompleted         EventType = "journey.completed"
	JourneyCancelled         EventType = "journey.cancelled"
	JourneyFinancialsUpdated EventType = "journey.financials_updated"
	ExpenseCreated           EventType = "expense.created"
	ExpenseUpdated           EventType = "expense.updated"
	ExpenseDeleted           EventType = "expense.deleted"
	SalaryRecorded           EventType = "salary.recorded"
	EmiScheduled             EventType = "emi.scheduled"
	EmiPaid                  EventType = "emi.paid"
	LedgerReset              EventType = "ledger.reset"
)

// LedgerEvent is published after a ledger mutation commits.  It carries
// enough for the audit trail without reading the database again.  Money is
// rendered as decimal strings.
type LedgerEvent struct {
	ID         string            `json:"id"`
	Type       EventType         `json:"type"`
	OccurredAt time.Time         `json:"occurred_at"`
	ActorID    uint64            `json:"actor_id"`
	ActorRole  string            `json:"actor_role"`
	JourneyID  uint64            `json:"journey_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// FormatLine renders ev as one audit log line.  Attributes are sorted by
// key so lines are stable.
func FormatLine(ev LedgerEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | id=%s | actor=%d(%s)",
		ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.ID, ev.ActorID, ev.ActorRole)
	if ev.JourneyID != 0 {
		fmt.Fprintf(&b, " | journey_id=%d", ev.JourneyID)
	}
	keys := make([]string, 0, len(ev.Attributes))
	for k := range ev.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " | %s=%q", k, ev.Attributes[k])
	}
	b.WriteString("\n")
	return b.String()
}
