package pg

import (
	"context"

	"inkshelf.org/internal/catalog"
	"inkshelf.org/internal/moderation"
)

// ListAudit returns entries newest first. There is no delete path; the table
// only ever grows.
func (s *Store) ListAudit(ctx context.Context, page moderation.Page) ([]catalog.AuditEntry, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from activity_logs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select id, user_id, action, entity_type, entity_id,
			coalesce(target_label,''), details, created_at
		from activity_logs
		order by created_at desc limit $1 offset $2
	`, page.Size, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var res []catalog.AuditEntry
	for rows.Next() {
		var (
			e       catalog.AuditEntry
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.EntityType,
			&e.EntityID, &e.TargetLabel, &details, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		e.Details = scanMap(details)
		res = append(res, e)
	}
	return res, total, rows.Err()
}
