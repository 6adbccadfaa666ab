// Package service implements the allocation workflow: the only code allowed
// to move personnel between "waiting" and "housed" and to flip living units
// between VACANT and OCCUPIED. Every state transition runs as a single
// transaction against the shared store; a partial application (unit occupied
// but queue entry still present, for example) is the primary correctness
// hazard and is ruled out by rolling the whole transaction back on any error.
package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dhq-platform/accommodation/internal/model"
	"github.com/dhq-platform/accommodation/internal/repository"
)

// AllocationService is the allocation request state machine. It owns the
// transactions that span the queue ledger, the unit registry, the request
// table and the past-allocation archive.
type AllocationService struct {
	db       *sql.DB
	queue    *repository.QueueRepo
	units    *repository.UnitRepo
	requests *repository.AllocationRepo
	archive  *repository.PastAllocationRepo
	now      func() time.Time
}

// NewAllocationService constructs the engine. All repositories must share
// the same database handle so transactions span them.
func NewAllocationService(db *sql.DB, queue *repository.QueueRepo, units *repository.UnitRepo, requests *repository.AllocationRepo, archive *repository.PastAllocationRepo) *AllocationService {
	if db == nil || queue == nil || units == nil || requests == nil || archive == nil {
		panic("nil dependency passed to NewAllocationService")
	}
	return &AllocationService{
		db:       db,
		queue:    queue,
		units:    units,
		requests: requests,
		archive:  archive,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *AllocationService) begin(ctx context.Context) (*sql.Tx, func(*bool), error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func(committed *bool) {
		if !*committed {
			_ = tx.Rollback()
		}
	}
	return tx, cleanup, nil
}

// CreateRequest converts a queue entry into a pending allocation request for
// a unit. In one transaction it locks the unit row (serializing concurrent
// creates for the same unit), validates vacancy, category match and the
// pending-per-unit rule, captures immutable personnel and unit snapshots,
// generates the letter ID unless the caller supplied one, inserts the
// request and removes the queue entry. If the entry has already been
// consumed the whole transaction aborts: the request must never exist
// without the corresponding removal.
func (s *AllocationService) CreateRequest(ctx context.Context, queueEntryID, unitID uint64, letterID string) (model.AllocationRequest, error) {
	tx, cleanup, err := s.begin(ctx)
	if err != nil {
		return model.AllocationRequest{}, err
	}
	committed := false
	defer cleanup(&committed)

	unit, err := s.units.GetByIDTx(ctx, tx, unitID)
	if err != nil {
		return model.AllocationRequest{}, err
	}
	entry, err := s.queue.GetByIDTx(ctx, tx, queueEntryID)
	if err != nil {
		return model.AllocationRequest{}, err
	}
	if unit.Status != model.UnitVacant {
		return model.AllocationRequest{}, repository.ErrUnitNotVacant
	}
	if unit.Category != entry.Category {
		return model.AllocationRequest{}, repository.ErrCategoryMismatch
	}
	pending, err := s.requests.HasPendingForUnitTx(ctx, tx, unitID)
	if err != nil {
		return model.AllocationRequest{}, err
	}
	if pending {
		return model.AllocationRequest{}, repository.ErrAlreadyRequested
	}
	if letterID == "" {
		letterID, err = s.generateLetterIDTx(ctx, tx, s.now())
		if err != nil {
			return model.AllocationRequest{}, err
		}
	}
	personnelData, err := model.EncodeSnapshot(entry.Snapshot())
	if err != nil {
		return model.AllocationRequest{}, err
	}
	unitData, err := model.EncodeSnapshot(unit.Snapshot())
	if err != nil {
		return model.AllocationRequest{}, err
	}
	req := model.AllocationRequest{
		PersonnelID:   entry.ID,
		UnitID:        unitID,
		LetterID:      letterID,
		PersonnelData: personnelData,
		UnitData:      unitData,
		Status:        model.RequestPending,
	}
	if err := s.requests.CreateTx(ctx, tx, &req); err != nil {
		return model.AllocationRequest{}, err
	}
	if err := s.queue.DeleteTx(ctx, tx, entry.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.AllocationRequest{}, repository.ErrQueueEntryNotFound
		}
		return model.AllocationRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.AllocationRequest{}, err
	}
	committed = true
	return req, nil
}

// Approve transitions a pending request to APPROVED. If the requester
// already occupies a different unit (matched by service number) this is a
// transfer: the old unit is archived with reason "Transfer to another unit"
// and reset to VACANT before the target unit is occupied from the request's
// personnel snapshot. The returned bool reports whether the approval was a
// transfer. A request that is not pending is rejected with ErrNotPending so
// a re-attempted approve can never double-apply.
func (s *AllocationService) Approve(ctx context.Context, requestID, approverID uint64) (model.AllocationRequest, bool, error) {
	tx, cleanup, err := s.begin(ctx)
	if err != nil {
		return model.AllocationRequest{}, false, err
	}
	committed := false
	defer cleanup(&committed)

	req, err := s.requests.GetByIDTx(ctx, tx, requestID)
	if err != nil {
		return model.AllocationRequest{}, false, err
	}
	if req.Status != model.RequestPending {
		return model.AllocationRequest{}, false, repository.ErrNotPending
	}
	person, err := model.DecodePersonnelSnapshot(req.PersonnelData)
	if err != nil {
		return model.AllocationRequest{}, false, err
	}
	now := s.now()
	transfer := false

	old, err := s.units.FindOccupiedBySvcNoTx(ctx, tx, person.SvcNo, req.UnitID)
	switch {
	case err == nil:
		// Transfer: archive the old occupancy, then free the old unit.
		transfer = true
		start := now
		if old.OccupancyStartDate != nil {
			start = *old.OccupancyStartDate
		}
		oldUnitData, err := model.EncodeSnapshot(old.Snapshot())
		if err != nil {
			return model.AllocationRequest{}, false, err
		}
		past := model.PastAllocation{
			PersonnelID:         req.PersonnelID,
			UnitID:              old.ID,
			LetterID:            req.LetterID,
			PersonnelData:       req.PersonnelData,
			UnitData:            oldUnitData,
			AllocationStartDate: start,
			AllocationEndDate:   now,
			DeallocationDate:    now,
			ReasonForLeaving:    model.ReasonTransfer,
		}
		if err := s.archive.CreateTx(ctx, tx, &past); err != nil {
			return model.AllocationRequest{}, false, err
		}
		if err := s.units.VacateTx(ctx, tx, old.ID); err != nil {
			return model.AllocationRequest{}, false, err
		}
	case errors.Is(err, repository.ErrUnitNotFound):
		// First-time allocation: nothing to vacate.
	default:
		return model.AllocationRequest{}, false, err
	}

	if err := s.units.OccupyTx(ctx, tx, req.UnitID, person, req.PersonnelID, now); err != nil {
		return model.AllocationRequest{}, false, err
	}
	if err := s.requests.MarkApprovedTx(ctx, tx, req.ID, approverID, now); err != nil {
		return model.AllocationRequest{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return model.AllocationRequest{}, false, err
	}
	committed = true

	req.Status = model.RequestApproved
	req.ApprovedBy = &approverID
	req.ApprovedAt = &now
	return req, transfer, nil
}

// Refuse transitions a pending request to REFUSED and returns the person to
// the front of the queue, shifting every waiting entry back by one. Both
// steps run in the same transaction: unlike the historical behaviour of
// logging a warning when reinsertion failed after the refusal had been
// committed, a failed reinsertion here rolls the refusal back too.
func (s *AllocationService) Refuse(ctx context.Context, requestID uint64, reason string) (model.AllocationRequest, error) {
	tx, cleanup, err := s.begin(ctx)
	if err != nil {
		return model.AllocationRequest{}, err
	}
	committed := false
	defer cleanup(&committed)

	req, err := s.requests.GetByIDTx(ctx, tx, requestID)
	if err != nil {
		return model.AllocationRequest{}, err
	}
	if req.Status != model.RequestPending {
		return model.AllocationRequest{}, repository.ErrNotPending
	}
	if err := s.requests.MarkRefusedTx(ctx, tx, req.ID, reason); err != nil {
		return model.AllocationRequest{}, err
	}
	person, err := model.DecodePersonnelSnapshot(req.PersonnelData)
	if err != nil {
		return model.AllocationRequest{}, err
	}
	entry := model.QueueEntry{
		FullName:      person.FullName,
		SvcNo:         person.SvcNo,
		Rank:          person.Rank,
		Category:      person.Category,
		Gender:        person.Gender,
		MaritalStatus: person.MaritalStatus,
		Dependents:    person.Dependents,
		CurrentUnit:   person.CurrentUnit,
		Appointment:   person.Appointment,
		EntryDate:     s.now(),
	}
	if err := s.queue.InsertAtFrontTx(ctx, tx, &entry); err != nil {
		return model.AllocationRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.AllocationRequest{}, err
	}
	committed = true

	req.Status = model.RequestRefused
	req.RefusalReason = &reason
	return req, nil
}

// Deallocate ends the occupancy tracked by an approved request: it writes
// exactly one archive row (allocation start = approval time), marks the
// request DEALLOCATED and resets the unit to VACANT, all in one transaction.
// An empty reason defaults to "Deallocated".
func (s *AllocationService) Deallocate(ctx context.Context, requestID uint64, reason string) (model.PastAllocation, error) {
	tx, cleanup, err := s.begin(ctx)
	if err != nil {
		return model.PastAllocation{}, err
	}
	committed := false
	defer cleanup(&committed)

	req, err := s.requests.GetByIDTx(ctx, tx, requestID)
	if err != nil {
		return model.PastAllocation{}, err
	}
	if req.Status != model.RequestApproved {
		return model.PastAllocation{}, repository.ErrNotApproved
	}
	now := s.now()
	start := now
	if req.ApprovedAt != nil {
		start = *req.ApprovedAt
	}
	if reason == "" {
		reason = model.ReasonDeallocated
	}
	past := model.PastAllocation{
		PersonnelID:         req.PersonnelID,
		UnitID:              req.UnitID,
		LetterID:            req.LetterID,
		PersonnelData:       req.PersonnelData,
		UnitData:            req.UnitData,
		AllocationStartDate: start,
		AllocationEndDate:   now,
		DeallocationDate:    now,
		ReasonForLeaving:    reason,
	}
	if err := s.archive.CreateTx(ctx, tx, &past); err != nil {
		return model.PastAllocation{}, err
	}
	if err := s.requests.MarkDeallocatedTx(ctx, tx, req.ID); err != nil {
		return model.PastAllocation{}, err
	}
	if err := s.units.VacateTx(ctx, tx, req.UnitID); err != nil {
		return model.PastAllocation{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.PastAllocation{}, err
	}
	committed = true
	return past, nil
}

// DirectDeallocation describes a unit occupied without a tracked request
// (legacy data). The personnel snapshot may be partial; missing fields are
// filled from the unit's occupant columns.
type DirectDeallocation struct {
	UnitID      uint64
	PersonnelID uint64
	Personnel   model.PersonnelSnapshot
	StartDate   *time.Time
	Reason      string
}

// DeallocateDirect vacates an occupied unit that has no tracked request,
// producing exactly one archive row. The unit must currently be OCCUPIED.
func (s *AllocationService) DeallocateDirect(ctx context.Context, in DirectDeallocation) (model.PastAllocation, error) {
	tx, cleanup, err := s.begin(ctx)
	if err != nil {
		return model.PastAllocation{}, err
	}
	committed := false
	defer cleanup(&committed)

	unit, err := s.units.GetByIDTx(ctx, tx, in.UnitID)
	if err != nil {
		return model.PastAllocation{}, err
	}
	if unit.Status != model.UnitOccupied {
		return model.PastAllocation{}, repository.ErrConflict
	}

	person := in.Personnel
	if person.FullName == "" && unit.OccupantName != nil {
		person.FullName = *unit.OccupantName
	}
	if person.Rank == "" && unit.OccupantRank != nil {
		person.Rank = *unit.OccupantRank
	}
	if person.SvcNo == "" && unit.OccupantSvcNo != nil {
		person.SvcNo = *unit.OccupantSvcNo
	}
	personnelID := in.PersonnelID
	if personnelID == 0 && unit.OccupantID != nil {
		personnelID = *unit.OccupantID
	}

	now := s.now()
	start := now
	if in.StartDate != nil {
		start = *in.StartDate
	} else if unit.OccupancyStartDate != nil {
		start = *unit.OccupancyStartDate
	}
	reason := in.Reason
	if reason == "" {
		reason = model.ReasonDeallocated
	}
	personnelData, err := model.EncodeSnapshot(person)
	if err != nil {
		return model.PastAllocation{}, err
	}
	unitData, err := model.EncodeSnapshot(unit.Snapshot())
	if err != nil {
		return model.PastAllocation{}, err
	}
	past := model.PastAllocation{
		PersonnelID:         personnelID,
		UnitID:              unit.ID,
		PersonnelData:       personnelData,
		UnitData:            unitData,
		AllocationStartDate: start,
		AllocationEndDate:   now,
		DeallocationDate:    now,
		ReasonForLeaving:    reason,
	}
	if err := s.archive.CreateTx(ctx, tx, &past); err != nil {
		return model.PastAllocation{}, err
	}
	if err := s.units.VacateTx(ctx, tx, unit.ID); err != nil {
		return model.PastAllocation{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.PastAllocation{}, err
	}
	committed = true
	return past, nil
}
