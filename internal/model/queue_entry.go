package model

import "time"

// Personnel categories accepted on intake.  A unit may only be allocated to
// personnel of the matching category.
const (
	CategoryNCO     = "NCO"
	CategoryOfficer = "OFFICER"
)

// QueueEntry represents one person on the accommodation waiting list.  The
// Sequence column defines the total wait order: "next in line" is always the
// minimum sequence among entries that have no allocation request yet.
// Sequence values may contain gaps after removals; only relative order
// matters.  This struct corresponds to a row in the `queue_entries` table.
//
// Fields:
//
//	ID                   – primary key identifier.
//	Sequence             – positive integer defining wait order (unique).
//	FullName             – full name of the waiting person.
//	SvcNo                – service number.
//	Rank                 – current rank.
//	Category             – NCO or OFFICER.
//	Gender               – gender.
//	MaritalStatus        – marital status.
//	Dependents           – number of registered dependents.
//	CurrentUnit          – current posting.
//	Appointment          – current appointment.
//	EntryDate            – date the person joined the queue.
//	HasAllocationRequest – true once the entry has been converted into a
//	                       pending allocation request.
//	DeletedAt            – soft-delete tombstone (nil for live rows).
//	CreatedAt            – creation timestamp.
//	UpdatedAt            – last update timestamp.
type QueueEntry struct {
	ID                   uint64     // queue_entries.id
	Sequence             uint32     // queue_entries.sequence
	FullName             string     // queue_entries.full_name
	SvcNo                string     // queue_entries.svc_no
	Rank                 string     // queue_entries.current_rank
	Category             string     // queue_entries.category
	Gender               string     // queue_entries.gender
	MaritalStatus        string     // queue_entries.marital_status
	Dependents           uint32     // queue_entries.dependents
	CurrentUnit          string     // queue_entries.current_unit
	Appointment          string     // queue_entries.appointment
	EntryDate            time.Time  // queue_entries.entry_date
	HasAllocationRequest bool       // queue_entries.has_allocation_request
	DeletedAt            *time.Time // queue_entries.deleted_at (nullable)
	CreatedAt            time.Time  // queue_entries.created_at
	UpdatedAt            time.Time  // queue_entries.updated_at
}

// Snapshot copies the entry's identity fields into an immutable
// PersonnelSnapshot for storage on an allocation request.
func (q *QueueEntry) Snapshot() PersonnelSnapshot {
	return PersonnelSnapshot{
		FullName:      q.FullName,
		SvcNo:         q.SvcNo,
		Rank:          q.Rank,
		Category:      q.Category,
		Gender:        q.Gender,
		MaritalStatus: q.MaritalStatus,
		Dependents:    q.Dependents,
		CurrentUnit:   q.CurrentUnit,
		Appointment:   q.Appointment,
	}
}
