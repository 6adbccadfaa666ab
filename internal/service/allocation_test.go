package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhq-platform/accommodation/internal/model"
	"github.com/dhq-platform/accommodation/internal/repository"
)

var testNow = time.Date(2025, time.June, 2, 9, 30, 0, 0, time.UTC)

func newEngine(t *testing.T) (*AllocationService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s := NewAllocationService(db,
		repository.NewQueueRepo(db),
		repository.NewUnitRepo(db),
		repository.NewAllocationRepo(db),
		repository.NewPastAllocationRepo(db))
	s.now = func() time.Time { return testNow }
	return s, mock
}

var unitCols = []string{
	"id", "quarter_name", "block_name", "room_label", "category", "num_rooms",
	"unit_type", "status", "occupant_name", "occupant_rank", "occupant_svc_no",
	"occupant_id", "occupancy_start_date", "created_at", "updated_at",
}

func vacantUnitRow(id uint64, category string) *sqlmock.Rows {
	return sqlmock.NewRows(unitCols).AddRow(
		id, "Eagle Quarters", "Block B", "Flat 3", category, 3,
		"Flat", model.UnitVacant, nil, nil, nil, nil, nil, testNow, testNow)
}

func occupiedUnitRow(id uint64, category, name, rank, svcNo string, occID uint64, start time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(unitCols).AddRow(
		id, "Falcon Quarters", "Block A", "House 1", category, 4,
		"Duplex", model.UnitOccupied, name, rank, svcNo, occID, start, testNow, testNow)
}

var queueCols = []string{
	"id", "sequence", "full_name", "svc_no", "current_rank", "category", "gender",
	"marital_status", "dependents", "current_unit", "appointment", "entry_date",
	"has_allocation_request", "deleted_at", "created_at", "updated_at",
}

func queueEntryRow(id uint64, seq uint32, category string) *sqlmock.Rows {
	return sqlmock.NewRows(queueCols).AddRow(
		id, seq, "John Okoro", "DHQ/1234", "Sergeant", category, "M",
		"Married", 2, "HQ Garrison", "Clerk", testNow.AddDate(0, -1, 0),
		false, nil, testNow, testNow)
}

var requestCols = []string{
	"id", "personnel_id", "unit_id", "letter_id", "personnel_data", "unit_data",
	"status", "approved_by", "approved_at", "refusal_reason", "created_at", "updated_at",
}

func encodePersonnel(t *testing.T, p model.PersonnelSnapshot) string {
	t.Helper()
	s, err := model.EncodeSnapshot(p)
	require.NoError(t, err)
	return s
}

func pendingRequestRow(t *testing.T, id, personnelID, unitID uint64, person model.PersonnelSnapshot) *sqlmock.Rows {
	return sqlmock.NewRows(requestCols).AddRow(
		id, personnelID, unitID, "DHQ/ACC/2025/0007", encodePersonnel(t, person), "{}",
		model.RequestPending, nil, nil, nil, testNow, testNow)
}

func TestCreateRequest(t *testing.T) {
	person := model.PersonnelSnapshot{FullName: "John Okoro", SvcNo: "DHQ/1234", Rank: "Sergeant", Category: model.CategoryNCO}

	t.Run("success generates letter id and consumes queue entry", func(t *testing.T) {
		s, mock := newEngine(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM units WHERE id = \? FOR UPDATE`).
			WithArgs(uint64(5)).WillReturnRows(vacantUnitRow(5, model.CategoryNCO))
		mock.ExpectQuery(`FROM queue_entries WHERE id = \? AND deleted_at IS NULL FOR UPDATE`).
			WithArgs(uint64(9)).WillReturnRows(queueEntryRow(9, 3, model.CategoryNCO))
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM allocation_requests WHERE unit_id = \? AND status = \?`).
			WithArgs(uint64(5), model.RequestPending).
			WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM allocation_requests WHERE created_at >= \? AND created_at < \?`).
			WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(6))
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM allocation_requests WHERE letter_id = \?`).
			WithArgs("DHQ/ACC/2025/0007").
			WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
		mock.ExpectExec(`INSERT INTO allocation_requests`).
			WillReturnResult(sqlmock.NewResult(11, 1))
		mock.ExpectQuery(`FROM allocation_requests WHERE id = \?`).
			WithArgs(uint64(11)).WillReturnRows(pendingRequestRow(t, 11, 9, 5, person))
		mock.ExpectExec(`DELETE FROM queue_entries WHERE id = \?`).
			WithArgs(uint64(9)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		req, err := s.CreateRequest(context.Background(), 9, 5, "")
		require.NoError(t, err)
		assert.Equal(t, uint64(11), req.ID)
		assert.Equal(t, "DHQ/ACC/2025/0007", req.LetterID)
		assert.Equal(t, model.RequestPending, req.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unit not vacant", func(t *testing.T) {
		s, mock := newEngine(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM units WHERE id = \? FOR UPDATE`).
			WithArgs(uint64(5)).
			WillReturnRows(occupiedUnitRow(5, model.CategoryNCO, "Ada Obi", "Corporal", "DHQ/9999", 2, testNow))
		mock.ExpectQuery(`FROM queue_entries WHERE id = \? AND deleted_at IS NULL FOR UPDATE`).
			WithArgs(uint64(9)).WillReturnRows(queueEntryRow(9, 3, model.CategoryNCO))
		mock.ExpectRollback()

		_, err := s.CreateRequest(context.Background(), 9, 5, "")
		assert.ErrorIs(t, err, repository.ErrUnitNotVacant)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("category mismatch", func(t *testing.T) {
		s, mock := newEngine(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM units WHERE id = \? FOR UPDATE`).
			WithArgs(uint64(5)).WillReturnRows(vacantUnitRow(5, model.CategoryOfficer))
		mock.ExpectQuery(`FROM queue_entries WHERE id = \? AND deleted_at IS NULL FOR UPDATE`).
			WithArgs(uint64(9)).WillReturnRows(queueEntryRow(9, 3, model.CategoryNCO))
		mock.ExpectRollback()

		_, err := s.CreateRequest(context.Background(), 9, 5, "")
		assert.ErrorIs(t, err, repository.ErrCategoryMismatch)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unit already has a pending request", func(t *testing.T) {
		s, mock := newEngine(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM units WHERE id = \? FOR UPDATE`).
			WithArgs(uint64(5)).WillReturnRows(vacantUnitRow(5, model.CategoryNCO))
		mock.ExpectQuery(`FROM queue_entries WHERE id = \? AND deleted_at IS NULL FOR UPDATE`).
			WithArgs(uint64(9)).WillReturnRows(queueEntryRow(9, 3, model.CategoryNCO))
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM allocation_requests WHERE unit_id = \? AND status = \?`).
			WithArgs(uint64(5), model.RequestPending).
			WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
		mock.ExpectRollback()

		_, err := s.CreateRequest(context.Background(), 9, 5, "")
		assert.ErrorIs(t, err, repository.ErrAlreadyRequested)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing queue entry aborts the whole transaction", func(t *testing.T) {
		s, mock := newEngine(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM units WHERE id = \? FOR UPDATE`).
			WithArgs(uint64(5)).WillReturnRows(vacantUnitRow(5, model.CategoryNCO))
		mock.ExpectQuery(`FROM queue_entries WHERE id = \? AND deleted_at IS NULL FOR UPDATE`).
			WithArgs(uint64(9)).WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := s.CreateRequest(context.Background(), 9, 5, "")
		assert.ErrorIs(t, err, repository.ErrQueueEntryNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestApprove(t *testing.T) {
	person := model.PersonnelSnapshot{FullName: "John Okoro", SvcNo: "DHQ/1234", Rank: "Sergeant", Category: model.CategoryNCO}

	t.Run("first-time allocation occupies the unit", func(t *testing.T) {
		s, mock := newEngine(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM allocation_requests WHERE id = \? FOR UPDATE`).
			WithArgs(uint64(11)).WillReturnRows(pendingRequestRow(t, 11, 9, 5, person))
		mock.ExpectQuery(`WHERE status = \? AND occupant_svc_no = \? AND id <> \?`).
			WithArgs(model.UnitOccupied, "DHQ/1234", uint64(5)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec(`UPDATE units SET status = \?, occupant_name = \?`).
			WithArgs(model.UnitOccupied, "John Okoro", "Sergeant", "DHQ/1234", uint64(9), testNow, uint64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE allocation_requests SET status = \?, approved_by = \?, approved_at = \?`).
			WithArgs(model.RequestApproved, uint64(77), testNow, uint64(11)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		req, transfer, err := s.Approve(context.Background(), 11, 77)
		require.NoError(t, err)
		assert.False(t, transfer)
		assert.Equal(t, model.RequestApproved, req.Status)
		require.NotNil(t, req.ApprovedBy)
		assert.Equal(t, uint64(77), *req.ApprovedBy)
		require.NotNil(t, req.ApprovedAt)
		assert.Equal(t, testNow, *req.ApprovedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("transfer archives and vacates the previous unit", func(t *testing.T) {
		s, mock := newEngine(t)
		oldStart := testNow.AddDate(-1, 0, 0)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM allocation_requests WHERE id = \? FOR UPDATE`).
			WithArgs(uint64(11)).WillReturnRows(pendingRequestRow(t, 11, 9, 5, person))
		mock.ExpectQuery(`WHERE status = \? AND occupant_svc_no = \? AND id <> \?`).
			WithArgs(model.UnitOccupied, "DHQ/1234", uint64(5)).
			WillReturnRows(occupiedUnitRow(3, model.CategoryNCO, "John Okoro", "Sergeant", "DHQ/1234", 9, oldStart))
		mock.ExpectExec(`INSERT INTO past_allocations`).
			WillReturnResult(sqlmock.NewResult(21, 1))
		mock.ExpectExec(`UPDATE units SET status = \?, occupant_name = NULL`).
			WithArgs(model.UnitVacant, uint64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE units SET status = \?, occupant_name = \?`).
			WithArgs(model.UnitOccupied, "John Okoro", "Sergeant", "DHQ/1234", uint64(9), testNow, uint64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE allocation_requests SET status = \?, approved_by = \?, approved_at = \?`).
			WithArgs(model.RequestApproved, uint64(77), testNow, uint64(11)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		_, transfer, err := s.Approve(context.Background(), 11, 77)
		require.NoError(t, err)
		assert.True(t, transfer)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-pending request is rejected", func(t *testing.T) {
		s, mock := newEngine(t)
		approvedAt := testNow.AddDate(0, 0, -1)
		rows := sqlmock.NewRows(requestCols).AddRow(
			11, 9, 5, "DHQ/ACC/2025/0007", encodePersonnel(t, person), "{}",
			model.RequestApproved, 77, approvedAt, nil, testNow, testNow)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM allocation_requests WHERE id = \? FOR UPDATE`).
			WithArgs(uint64(11)).WillReturnRows(rows)
		mock.ExpectRollback()

		_, _, err := s.Approve(context.Background(), 11, 77)
		assert.ErrorIs(t, err, repository.ErrNotPending)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRefuse(t *testing.T) {
	person := model.PersonnelSnapshot{FullName: "John Okoro", SvcNo: "DHQ/1234", Rank: "Sergeant", Category: model.CategoryNCO}

	t.Run("refusal and front reinsertion commit together", func(t *testing.T) {
		s, mock := newEngine(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM allocation_requests WHERE id = \? FOR UPDATE`).
			WithArgs(uint64(11)).WillReturnRows(pendingRequestRow(t, 11, 9, 5, person))
		mock.ExpectExec(`UPDATE allocation_requests SET status = \?, refusal_reason = \?`).
			WithArgs(model.RequestRefused, "unit under repair", uint64(11)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE queue_entries SET sequence = sequence \+ 1 ORDER BY sequence DESC`).
			WillReturnResult(sqlmock.NewResult(0, 4))
		mock.ExpectExec(`INSERT INTO queue_entries`).
			WillReturnResult(sqlmock.NewResult(33, 1))
		mock.ExpectCommit()

		req, err := s.Refuse(context.Background(), 11, "unit under repair")
		require.NoError(t, err)
		assert.Equal(t, model.RequestRefused, req.Status)
		require.NotNil(t, req.RefusalReason)
		assert.Equal(t, "unit under repair", *req.RefusalReason)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed reinsertion rolls the refusal back", func(t *testing.T) {
		s, mock := newEngine(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM allocation_requests WHERE id = \? FOR UPDATE`).
			WithArgs(uint64(11)).WillReturnRows(pendingRequestRow(t, 11, 9, 5, person))
		mock.ExpectExec(`UPDATE allocation_requests SET status = \?, refusal_reason = \?`).
			WithArgs(model.RequestRefused, "no longer eligible", uint64(11)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE queue_entries SET sequence = sequence \+ 1 ORDER BY sequence DESC`).
			WillReturnError(sql.ErrConnDone)
		mock.ExpectRollback()

		_, err := s.Refuse(context.Background(), 11, "no longer eligible")
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDeallocate(t *testing.T) {
	person := model.PersonnelSnapshot{FullName: "John Okoro", SvcNo: "DHQ/1234", Rank: "Sergeant", Category: model.CategoryNCO}
	approvedAt := testNow.AddDate(0, -6, 0)

	t.Run("archives once and vacates the unit", func(t *testing.T) {
		s, mock := newEngine(t)
		rows := sqlmock.NewRows(requestCols).AddRow(
			11, 9, 5, "DHQ/ACC/2025/0007", encodePersonnel(t, person), "{}",
			model.RequestApproved, 77, approvedAt, nil, testNow, testNow)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM allocation_requests WHERE id = \? FOR UPDATE`).
			WithArgs(uint64(11)).WillReturnRows(rows)
		mock.ExpectExec(`INSERT INTO past_allocations`).
			WillReturnResult(sqlmock.NewResult(21, 1))
		mock.ExpectExec(`UPDATE allocation_requests SET status = \? WHERE id = \?`).
			WithArgs(model.RequestDeallocated, uint64(11)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE units SET status = \?, occupant_name = NULL`).
			WithArgs(model.UnitVacant, uint64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		past, err := s.Deallocate(context.Background(), 11, "")
		require.NoError(t, err)
		assert.Equal(t, model.ReasonDeallocated, past.ReasonForLeaving)
		assert.Equal(t, approvedAt, past.AllocationStartDate)
		assert.Equal(t, testNow, past.DeallocationDate)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("pending request cannot be deallocated", func(t *testing.T) {
		s, mock := newEngine(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM allocation_requests WHERE id = \? FOR UPDATE`).
			WithArgs(uint64(11)).WillReturnRows(pendingRequestRow(t, 11, 9, 5, person))
		mock.ExpectRollback()

		_, err := s.Deallocate(context.Background(), 11, "")
		assert.ErrorIs(t, err, repository.ErrNotApproved)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDeallocateDirect(t *testing.T) {
	t.Run("fills missing personnel fields from the unit", func(t *testing.T) {
		s, mock := newEngine(t)
		start := testNow.AddDate(-2, 0, 0)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM units WHERE id = \? FOR UPDATE`).
			WithArgs(uint64(5)).
			WillReturnRows(occupiedUnitRow(5, model.CategoryNCO, "Ada Obi", "Corporal", "DHQ/9999", 4, start))
		mock.ExpectExec(`INSERT INTO past_allocations`).
			WillReturnResult(sqlmock.NewResult(21, 1))
		mock.ExpectExec(`UPDATE units SET status = \?, occupant_name = NULL`).
			WithArgs(model.UnitVacant, uint64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		past, err := s.DeallocateDirect(context.Background(), DirectDeallocation{UnitID: 5, Reason: "Retired"})
		require.NoError(t, err)
		assert.Equal(t, uint64(4), past.PersonnelID)
		assert.Equal(t, start, past.AllocationStartDate)
		assert.Equal(t, "Retired", past.ReasonForLeaving)

		got, err := model.DecodePersonnelSnapshot(past.PersonnelData)
		require.NoError(t, err)
		assert.Equal(t, "Ada Obi", got.FullName)
		assert.Equal(t, "DHQ/9999", got.SvcNo)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unit must be occupied", func(t *testing.T) {
		s, mock := newEngine(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM units WHERE id = \? FOR UPDATE`).
			WithArgs(uint64(5)).WillReturnRows(vacantUnitRow(5, model.CategoryNCO))
		mock.ExpectRollback()

		_, err := s.DeallocateDirect(context.Background(), DirectDeallocation{UnitID: 5})
		assert.ErrorIs(t, err, repository.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
