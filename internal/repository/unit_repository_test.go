package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhq-platform/accommodation/internal/model"
)

func newUnitRepo(t *testing.T) (*UnitRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewUnitRepo(db), mock
}

func unitRow(id uint64, status string) *sqlmock.Rows {
	now := time.Now().UTC()
	cols := []string{
		"id", "quarter_name", "block_name", "room_label", "category", "num_rooms",
		"unit_type", "status", "occupant_name", "occupant_rank", "occupant_svc_no",
		"occupant_id", "occupancy_start_date", "created_at", "updated_at",
	}
	if status == model.UnitOccupied {
		return sqlmock.NewRows(cols).AddRow(
			id, "Eagle Quarters", "Block B", "Flat 3", model.CategoryNCO, 3,
			"Flat", status, "Ada Obi", "Corporal", "DHQ/9999", 4, now, now, now)
	}
	return sqlmock.NewRows(cols).AddRow(
		id, "Eagle Quarters", "Block B", "Flat 3", model.CategoryNCO, 3,
		"Flat", status, nil, nil, nil, nil, nil, now, now)
}

func TestUpdateRejectsDirectOccupied(t *testing.T) {
	r, _ := newUnitRepo(t)
	err := r.Update(context.Background(), &model.LivingUnit{ID: 5, Status: model.UnitOccupied})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateRefusesToFlipOccupiedUnit(t *testing.T) {
	r, mock := newUnitRepo(t)

	mock.ExpectQuery(`FROM units WHERE id = \?`).
		WithArgs(uint64(5)).
		WillReturnRows(unitRow(5, model.UnitOccupied))

	err := r.Update(context.Background(), &model.LivingUnit{
		ID: 5, QuarterName: "Eagle Quarters", RoomLabel: "Flat 3",
		Category: model.CategoryNCO, Status: model.UnitNotInUse,
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEditsDescriptiveFields(t *testing.T) {
	r, mock := newUnitRepo(t)

	mock.ExpectQuery(`FROM units WHERE id = \?`).
		WithArgs(uint64(5)).
		WillReturnRows(unitRow(5, model.UnitVacant))
	mock.ExpectExec(`UPDATE units SET quarter_name = \?`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := r.Update(context.Background(), &model.LivingUnit{
		ID: 5, QuarterName: "Eagle Quarters", BlockName: "Block C", RoomLabel: "Flat 3",
		Category: model.CategoryNCO, NumRooms: 3, UnitType: "Flat", Status: model.UnitNotInUse,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteOccupiedWithoutForce(t *testing.T) {
	r, mock := newUnitRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM units WHERE id = \? FOR UPDATE`).
		WithArgs(uint64(5)).
		WillReturnRows(unitRow(5, model.UnitOccupied))
	mock.ExpectRollback()

	err := r.Delete(context.Background(), 5, false)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteWithForceCascades(t *testing.T) {
	r, mock := newUnitRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM units WHERE id = \? FOR UPDATE`).
		WithArgs(uint64(5)).
		WillReturnRows(unitRow(5, model.UnitOccupied))
	mock.ExpectExec(`DELETE FROM allocation_requests WHERE unit_id = \?`).
		WithArgs(uint64(5)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM past_allocations WHERE unit_id = \?`).
		WithArgs(uint64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM units WHERE id = \?`).
		WithArgs(uint64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, r.Delete(context.Background(), 5, true))
	assert.NoError(t, mock.ExpectationsWereMet())
}
