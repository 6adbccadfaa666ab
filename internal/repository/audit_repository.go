package repository

import (
	"context"
	"database/sql"
	"log"

	"github.com/dhq-platform/accommodation/internal/model"
)

// AuditRepo appends entries to the administrative audit trail. Auditing is
// best-effort: a failed insert is logged and swallowed so it can never fail
// the operation being audited.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo returns an AuditRepo bound to the given database.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// Record writes one audit entry. Errors are logged, not returned.
func (r *AuditRepo) Record(ctx context.Context, e model.AuditLog) {
	const q = `INSERT INTO audit_logs (user_id, action, entity_type, entity_id, old_data, new_data)
               VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, q,
		e.UserID, e.Action, e.EntityType, e.EntityID, e.OldData, e.NewData); err != nil {
		log.Printf("audit: record %s %s/%d failed: %v", e.Action, e.EntityType, e.EntityID, err)
	}
}

// ListByEntity returns the audit trail for one entity, oldest first. Used by
// administrators when reviewing a contested allocation.
func (r *AuditRepo) ListByEntity(ctx context.Context, entityType string, entityID uint64) ([]model.AuditLog, error) {
	const q = `SELECT id, user_id, action, entity_type, entity_id, old_data, new_data, created_at
               FROM audit_logs WHERE entity_type = ? AND entity_id = ? ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, q, entityType, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.AuditLog, 0)
	for rows.Next() {
		var e model.AuditLog
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.EntityType, &e.EntityID,
			&e.OldData, &e.NewData, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
