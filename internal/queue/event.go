// Package queue defines message payloads exchanged over the message broker
// and the background consumer that records them.
package queue

// Queue and routing-key names shared by the publisher and consumer.
const (
	QueueUpdatedName      = "queue.updated"
	AllocationDecidedName = "allocation.decided"
)

// QueueUpdatedEvent is published whenever the waiting list changes and
// periodically by the advisory heartbeat. It is informational only: readers
// must not treat it as a linearizable view of the ledger.
type QueueUpdatedEvent struct {
	WaitingCount int    `json:"waiting_count"`
	Cause        string `json:"cause"` // "intake", "remove", "insert_front", "request_created", "refusal_requeue", "heartbeat"
	EmittedAt    string `json:"emitted_at"`
}

// AllocationDecidedEvent is published when an allocation request is
// approved, refused or deallocated. It carries enough context for
// downstream consumers to log or notify without querying the database.
type AllocationDecidedEvent struct {
	RequestID   uint64 `json:"request_id"`
	PersonnelID uint64 `json:"personnel_id"`
	UnitID      uint64 `json:"unit_id"`
	LetterID    string `json:"letter_id"`
	Decision    string `json:"decision"` // APPROVED, REFUSED or DEALLOCATED
	DecidedBy   uint64 `json:"decided_by"`
	Reason      string `json:"reason,omitempty"`
	Transfer    bool   `json:"transfer"`
	DecidedAt   string `json:"decided_at"`
}
