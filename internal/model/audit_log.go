package model

import "time"

// AuditLog is one entry in the administrative audit trail.  OldData and
// NewData hold JSON blobs of the affected entity before and after the
// operation; either may be empty depending on the action.
type AuditLog struct {
	ID         uint64    // audit_logs.id
	UserID     uint64    // audit_logs.user_id
	Action     string    // audit_logs.action (e.g. "allocation.approve")
	EntityType string    // audit_logs.entity_type
	EntityID   uint64    // audit_logs.entity_id
	OldData    string    // audit_logs.old_data (JSON, may be empty)
	NewData    string    // audit_logs.new_data (JSON, may be empty)
	CreatedAt  time.Time // audit_logs.created_at
}
