package model

import "encoding/json"

// PersonnelSnapshot is an immutable copy of a person's identity taken at the
// moment an allocation request is created.  It is stored as a JSON column on
// allocation_requests and past_allocations so that later edits to the queue
// or to personnel records never rewrite history.
//
// Fields:
//
//	FullName      – full name including initials.
//	SvcNo         – service number, the stable identifier used for transfer
//	                detection against occupied units.
//	Rank          – rank held at request time.
//	Category      – NCO or OFFICER; must match the unit's category.
//	Gender        – gender as recorded on intake.
//	MaritalStatus – marital status as recorded on intake.
//	Dependents    – number of registered dependents.
//	CurrentUnit   – posting (military unit) at request time.
//	Appointment   – appointment held at request time.
type PersonnelSnapshot struct {
	FullName      string `json:"full_name"`
	SvcNo         string `json:"svc_no"`
	Rank          string `json:"rank"`
	Category      string `json:"category"`
	Gender        string `json:"gender"`
	MaritalStatus string `json:"marital_status"`
	Dependents    uint32 `json:"dependents"`
	CurrentUnit   string `json:"current_unit"`
	Appointment   string `json:"appointment"`
}

// UnitSnapshot is the immutable copy of a living unit's descriptive fields
// captured when an allocation request is created.
type UnitSnapshot struct {
	QuarterName string `json:"quarter_name"`
	BlockName   string `json:"block_name"`
	RoomLabel   string `json:"room_label"`
	Category    string `json:"category"`
	NumRooms    uint32 `json:"num_rooms"`
	UnitType    string `json:"unit_type"`
}

// EncodeSnapshot serialises a snapshot value for storage in a JSON column.
func EncodeSnapshot(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodePersonnelSnapshot parses the JSON stored on a request or archive row
// back into a PersonnelSnapshot.
func DecodePersonnelSnapshot(raw string) (PersonnelSnapshot, error) {
	var s PersonnelSnapshot
	err := json.Unmarshal([]byte(raw), &s)
	return s, err
}

// DecodeUnitSnapshot parses the JSON stored on a request or archive row back
// into a UnitSnapshot.
func DecodeUnitSnapshot(raw string) (UnitSnapshot, error) {
	var s UnitSnapshot
	err := json.Unmarshal([]byte(raw), &s)
	return s, err
}
