// internal/store/audit.go
package store

import (
	"context"
	"encoding/json"

	"commitsync/internal/model"
)

// AppendAudit writes one append-only audit entry. Entries are never updated or
// deleted under normal operation.
func (s *Store) AppendAudit(ctx context.Context, entry model.AuditEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO audit_log (actor, action, resource_type, resource_id, details)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.Actor, entry.Action, entry.ResourceType, entry.ResourceID, details,
	)
	return err
}
