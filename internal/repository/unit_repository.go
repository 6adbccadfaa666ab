package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/dhq-platform/accommodation/internal/model"
)

// ErrUnitNotFound is returned when a referenced living unit does not exist.
var ErrUnitNotFound = errors.New("unit not found")

const unitColumns = `id, quarter_name, block_name, room_label, category, num_rooms,
       unit_type, status, occupant_name, occupant_rank, occupant_svc_no,
       occupant_id, occupancy_start_date, created_at, updated_at`

// UnitRepo provides persistence for living units. Status and occupant
// fields always move together: occupant columns are populated exactly when
// status is OCCUPIED, and only the allocation engine writes them (via
// OccupyTx/VacateTx). Direct edits through Update never touch occupancy.
type UnitRepo struct {
	db *sql.DB
}

// NewUnitRepo returns a UnitRepo bound to the given database.
func NewUnitRepo(db *sql.DB) *UnitRepo { return &UnitRepo{db: db} }

// DB exposes the underlying handle so callers can begin transactions.
func (r *UnitRepo) DB() *sql.DB { return r.db }

func scanUnit(row interface{ Scan(...interface{}) error }) (model.LivingUnit, error) {
	var (
		u       model.LivingUnit
		name    sql.NullString
		rank    sql.NullString
		svcNo   sql.NullString
		occID   sql.NullInt64
		started sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.QuarterName, &u.BlockName, &u.RoomLabel, &u.Category, &u.NumRooms,
		&u.UnitType, &u.Status, &name, &rank, &svcNo, &occID, &started,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return model.LivingUnit{}, err
	}
	if name.Valid {
		v := name.String
		u.OccupantName = &v
	}
	if rank.Valid {
		v := rank.String
		u.OccupantRank = &v
	}
	if svcNo.Valid {
		v := svcNo.String
		u.OccupantSvcNo = &v
	}
	if occID.Valid {
		v := uint64(occID.Int64)
		u.OccupantID = &v
	}
	if started.Valid {
		v := started.Time
		u.OccupancyStartDate = &v
	}
	return u, nil
}

// Create inserts a new unit. New units start VACANT unless an explicit
// NOT_IN_USE status is supplied. The generated ID is populated on u.
func (r *UnitRepo) Create(ctx context.Context, u *model.LivingUnit) error {
	if u.Status == "" {
		u.Status = model.UnitVacant
	}
	const q = `INSERT INTO units
        (quarter_name, block_name, room_label, category, num_rooms, unit_type, status)
        VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		u.QuarterName, u.BlockName, u.RoomLabel, u.Category, u.NumRooms, u.UnitType, u.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// Update edits the descriptive fields of a unit. Status changes between
// VACANT and NOT_IN_USE are allowed here; OCCUPIED can only be entered or
// left through the allocation engine, so any attempt to set it directly is
// rejected with ErrForbidden, and a unit that is currently OCCUPIED cannot
// be flipped out from under its occupant (ErrConflict).
func (r *UnitRepo) Update(ctx context.Context, u *model.LivingUnit) error {
	if u.Status == model.UnitOccupied {
		return ErrForbidden
	}
	cur, err := r.GetByID(ctx, u.ID)
	if err != nil {
		return err
	}
	if cur.Status == model.UnitOccupied && u.Status != model.UnitOccupied {
		return ErrConflict
	}
	const q = `UPDATE units SET quarter_name = ?, block_name = ?, room_label = ?,
               category = ?, num_rooms = ?, unit_type = ?, status = ?
               WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q,
		u.QuarterName, u.BlockName, u.RoomLabel, u.Category, u.NumRooms, u.UnitType,
		u.Status, u.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUnitNotFound
	}
	return nil
}

// GetByID fetches a unit by ID. Returns ErrUnitNotFound when absent.
func (r *UnitRepo) GetByID(ctx context.Context, id uint64) (model.LivingUnit, error) {
	q := `SELECT ` + unitColumns + ` FROM units WHERE id = ?`
	u, err := scanUnit(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.LivingUnit{}, ErrUnitNotFound
	}
	return u, err
}

// GetByIDTx fetches a unit by ID within a transaction and locks the row.
// The allocation engine takes this lock before creating a request so that
// two concurrent creates for the same unit serialize, making the
// pending-per-unit check race-free.
func (r *UnitRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.LivingUnit, error) {
	q := `SELECT ` + unitColumns + ` FROM units WHERE id = ? FOR UPDATE`
	u, err := scanUnit(tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.LivingUnit{}, ErrUnitNotFound
	}
	return u, err
}

// FindOccupiedBySvcNoTx looks up a unit currently occupied by the given
// service number, excluding excludeID (the unit being allocated). Used for
// transfer detection during approval. Returns ErrUnitNotFound when the
// person occupies no other unit, which callers treat as a first-time
// allocation.
func (r *UnitRepo) FindOccupiedBySvcNoTx(ctx context.Context, tx *sql.Tx, svcNo string, excludeID uint64) (model.LivingUnit, error) {
	q := `SELECT ` + unitColumns + ` FROM units
          WHERE status = ? AND occupant_svc_no = ? AND id <> ?
          LIMIT 1 FOR UPDATE`
	u, err := scanUnit(tx.QueryRowContext(ctx, q, model.UnitOccupied, svcNo, excludeID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.LivingUnit{}, ErrUnitNotFound
	}
	return u, err
}

// OccupyTx marks a unit OCCUPIED and writes the occupant snapshot fields
// within a transaction.
func (r *UnitRepo) OccupyTx(ctx context.Context, tx *sql.Tx, unitID uint64, p model.PersonnelSnapshot, personnelID uint64, start time.Time) error {
	const q = `UPDATE units SET status = ?, occupant_name = ?, occupant_rank = ?,
               occupant_svc_no = ?, occupant_id = ?, occupancy_start_date = ?
               WHERE id = ?`
	res, err := tx.ExecContext(ctx, q,
		model.UnitOccupied, p.FullName, p.Rank, p.SvcNo, personnelID, start, unitID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUnitNotFound
	}
	return nil
}

// VacateTx resets a unit to VACANT and clears all occupant fields within a
// transaction.
func (r *UnitRepo) VacateTx(ctx context.Context, tx *sql.Tx, unitID uint64) error {
	const q = `UPDATE units SET status = ?, occupant_name = NULL, occupant_rank = NULL,
               occupant_svc_no = NULL, occupant_id = NULL, occupancy_start_date = NULL
               WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, model.UnitVacant, unitID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUnitNotFound
	}
	return nil
}

// List returns units filtered by optional status, category and a free-text
// match on quarter, block or room label. Results are ordered by quarter,
// block and room for stable display.
func (r *UnitRepo) List(ctx context.Context, status, category, search string) ([]model.LivingUnit, error) {
	q := `SELECT ` + unitColumns + ` FROM units WHERE 1=1`
	args := make([]interface{}, 0, 4)
	if status != "" {
		q += ` AND status = ?`
		args = append(args, status)
	}
	if category != "" {
		q += ` AND category = ?`
		args = append(args, category)
	}
	if s := strings.TrimSpace(search); s != "" {
		q += ` AND (quarter_name LIKE ? OR block_name LIKE ? OR room_label LIKE ?)`
		like := "%" + s + "%"
		args = append(args, like, like, like)
	}
	q += ` ORDER BY quarter_name, block_name, room_label`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	units := make([]model.LivingUnit, 0)
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return units, nil
}

// Delete removes a unit. An occupied unit cannot be deleted; it must go
// through deallocation first (ErrConflict). With force set, the unit and its
// dependent allocation requests and archive rows are removed in one
// transaction, which is the administrative cascade path.
func (r *UnitRepo) Delete(ctx context.Context, id uint64, force bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	u, err := r.GetByIDTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if u.Status == model.UnitOccupied && !force {
		return ErrConflict
	}
	if force {
		if _, err := tx.ExecContext(ctx, `DELETE FROM allocation_requests WHERE unit_id = ?`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM past_allocations WHERE unit_id = ?`, id); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM units WHERE id = ?`, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
