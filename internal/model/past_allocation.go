package model

import "time"

// Reasons recorded on past allocations when a unit is vacated.
const (
	ReasonDeallocated = "Deallocated"
	ReasonTransfer    = "Transfer to another unit"
)

// PastAllocation is the append-only historical record of one occupancy
// episode, written exactly when a unit is vacated (explicit deallocation or
// the old unit during a transfer).  Rows are only ever removed by a
// privileged administrative delete, which tombstones them via DeletedAt
// rather than dropping them.  This struct corresponds to a row in the
// `past_allocations` table.
type PastAllocation struct {
	ID                  uint64     // past_allocations.id
	PersonnelID         uint64     // past_allocations.personnel_id
	UnitID              uint64     // past_allocations.unit_id
	LetterID            string     // past_allocations.letter_id
	PersonnelData       string     // past_allocations.personnel_data (JSON)
	UnitData            string     // past_allocations.unit_data (JSON)
	AllocationStartDate time.Time  // past_allocations.allocation_start_date
	AllocationEndDate   time.Time  // past_allocations.allocation_end_date
	DeallocationDate    time.Time  // past_allocations.deallocation_date
	ReasonForLeaving    string     // past_allocations.reason_for_leaving
	DeletedAt           *time.Time // past_allocations.deleted_at (nullable)
	CreatedAt           time.Time  // past_allocations.created_at
}
