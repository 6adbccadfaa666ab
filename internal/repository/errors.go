// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the current user may not act on
// a resource, while ErrConflict signals that an operation cannot
// proceed due to dependent state (e.g. deleting a unit that is still
// occupied).
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation they
// are not permitted to perform. Handlers should translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot be performed
// because of conflicting state, such as deleting an occupied unit
// without going through deallocation. Handlers should translate this
// into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrAlreadyRequested is returned when a pending allocation request
// already exists for the target unit. At most one pending request may
// reference a unit at a time.
var ErrAlreadyRequested = errors.New("unit already has a pending allocation request")

// ErrNotPending is returned when an approve or refuse transition is
// attempted on a request that is not in the PENDING state. Re-running a
// decision must be rejected rather than double-applying side effects.
var ErrNotPending = errors.New("allocation request is not pending")

// ErrCategoryMismatch is returned when the personnel category does not
// match the category of the requested unit (NCO vs OFFICER).
var ErrCategoryMismatch = errors.New("personnel category does not match unit category")

// ErrUnitNotVacant is returned when an allocation request targets a
// unit whose status is not VACANT.
var ErrUnitNotVacant = errors.New("unit is not vacant")

// ErrSequenceConflict is returned when a queue insert collides with an
// existing sequence value. Given the atomic shift step this indicates a
// programming error and is surfaced loudly rather than reordering
// silently.
var ErrSequenceConflict = errors.New("queue sequence already taken")
