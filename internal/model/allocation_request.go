package model

import "time"

// Allocation request states.  PENDING transitions to APPROVED or REFUSED;
// APPROVED transitions to DEALLOCATED when the occupancy later ends.
const (
	RequestPending     = "PENDING"
	RequestApproved    = "APPROVED"
	RequestRefused     = "REFUSED"
	RequestDeallocated = "DEALLOCATED"
)

// AllocationRequest records the conversion of a queue entry into a request
// for a specific unit, and its progress through approval, refusal and
// eventual deallocation.  PersonnelData and UnitData are JSON snapshots
// captured at creation time; they are never updated afterwards.  This
// struct corresponds to a row in the `allocation_requests` table.
//
// Fields:
//
//	ID            – primary key identifier.
//	PersonnelID   – queue entry ID of the requester at creation time.
//	UnitID        – unit being requested.
//	LetterID      – human-readable reference (DHQ/ACC/<year>/<nnnn>).
//	PersonnelData – JSON PersonnelSnapshot captured at creation.
//	UnitData      – JSON UnitSnapshot captured at creation.
//	Status        – PENDING, APPROVED, REFUSED or DEALLOCATED.
//	ApprovedBy    – user ID of the approver (nil until approved).
//	ApprovedAt    – approval timestamp (nil until approved).
//	RefusalReason – reason supplied on refusal (nil unless refused).
//	CreatedAt     – creation timestamp.
//	UpdatedAt     – last update timestamp.
type AllocationRequest struct {
	ID            uint64     // allocation_requests.id
	PersonnelID   uint64     // allocation_requests.personnel_id
	UnitID        uint64     // allocation_requests.unit_id
	LetterID      string     // allocation_requests.letter_id
	PersonnelData string     // allocation_requests.personnel_data (JSON)
	UnitData      string     // allocation_requests.unit_data (JSON)
	Status        string     // allocation_requests.status
	ApprovedBy    *uint64    // allocation_requests.approved_by (nullable)
	ApprovedAt    *time.Time // allocation_requests.approved_at (nullable)
	RefusalReason *string    // allocation_requests.refusal_reason (nullable)
	CreatedAt     time.Time  // allocation_requests.created_at
	UpdatedAt     time.Time  // allocation_requests.updated_at
}
