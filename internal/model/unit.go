package model

import "time"

// Living unit statuses.  A unit carries occupant fields if and only if its
// status is OCCUPIED.
const (
	UnitVacant   = "VACANT"
	UnitOccupied = "OCCUPIED"
	UnitNotInUse = "NOT_IN_USE"
)

// LivingUnit describes a single accommodation unit (flat, house or room)
// within a quarter.  Occupant fields are a denormalized snapshot written
// exclusively by the allocation engine; user-facing edit endpoints never
// touch them.  This struct corresponds to a row in the `units` table.
//
// Fields:
//
//	ID                 – primary key identifier.
//	QuarterName        – name of the quarter the unit belongs to.
//	BlockName          – block within the quarter.
//	RoomLabel          – flat/house/room designation.
//	Category           – personnel category the unit is reserved for.
//	NumRooms           – number of rooms in the unit.
//	UnitType           – descriptive type (e.g. "Duplex", "Flat").
//	Status             – VACANT, OCCUPIED or NOT_IN_USE.
//	OccupantName       – name of the current occupant (nil unless OCCUPIED).
//	OccupantRank       – rank of the current occupant (nil unless OCCUPIED).
//	OccupantSvcNo      – service number of the occupant (nil unless OCCUPIED).
//	OccupantID         – queue/request personnel ID (nil unless OCCUPIED).
//	OccupancyStartDate – when the current occupancy began (nil unless OCCUPIED).
//	CreatedAt          – creation timestamp.
//	UpdatedAt          – last update timestamp.
type LivingUnit struct {
	ID                 uint64     // units.id
	QuarterName        string     // units.quarter_name
	BlockName          string     // units.block_name
	RoomLabel          string     // units.room_label
	Category           string     // units.category
	NumRooms           uint32     // units.num_rooms
	UnitType           string     // units.unit_type
	Status             string     // units.status
	OccupantName       *string    // units.occupant_name (nullable)
	OccupantRank       *string    // units.occupant_rank (nullable)
	OccupantSvcNo      *string    // units.occupant_svc_no (nullable)
	OccupantID         *uint64    // units.occupant_id (nullable)
	OccupancyStartDate *time.Time // units.occupancy_start_date (nullable)
	CreatedAt          time.Time  // units.created_at
	UpdatedAt          time.Time  // units.updated_at
}

// Snapshot copies the unit's descriptive fields into an immutable
// UnitSnapshot for storage on an allocation request.
func (u *LivingUnit) Snapshot() UnitSnapshot {
	return UnitSnapshot{
		QuarterName: u.QuarterName,
		BlockName:   u.BlockName,
		RoomLabel:   u.RoomLabel,
		Category:    u.Category,
		NumRooms:    u.NumRooms,
		UnitType:    u.UnitType,
	}
}

// ValidUnitStatus reports whether s is one of the recognised unit statuses.
func ValidUnitStatus(s string) bool {
	return s == UnitVacant || s == UnitOccupied || s == UnitNotInUse
}
