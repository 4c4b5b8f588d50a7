package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"inkshelf.org/internal/catalog"
	"inkshelf.org/internal/moderation"
)

const reportColumns = `
	id, reporter_id, entity_type, entity_id, reason, coalesce(details,''),
	status, coalesce(resolved_by,''), resolved_at, coalesce(resolution_note,''),
	created_at`

func scanReport(row rowScanner) (*catalog.Report, error) {
	var (
		rp         catalog.Report
		resolvedAt sql.NullTime
	)
	err := row.Scan(
		&rp.ID, &rp.ReporterID, &rp.EntityType, &rp.EntityID, &rp.Reason,
		&rp.Details, &rp.Status, &rp.ResolvedBy, &resolvedAt,
		&rp.ResolutionNote, &rp.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rp.ResolvedAt = timePtr(resolvedAt)
	return &rp, nil
}

func (s *Store) GetReport(ctx context.Context, id string) (*catalog.Report, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+reportColumns+` from reports where id=$1`, id)
	return scanReport(row)
}

func (s *Store) InsertReport(ctx context.Context, rp *catalog.Report) error {
	_, err := s.db.ExecContext(ctx, `
		insert into reports(id, reporter_id, entity_type, entity_id, reason,
			details, status, created_at)
		values ($1,$2,$3,$4,$5,nullif($6,''),$7,$8)
	`,
		rp.ID, rp.ReporterID, rp.EntityType, rp.EntityID, rp.Reason,
		rp.Details, rp.Status, rp.CreatedAt,
	)
	return err
}

func (s *Store) ListReports(ctx context.Context, f moderation.ReportFilter) ([]catalog.Report, int, error) {
	clause := ""
	args := []any{}
	switch f.Status {
	case "", "all":
	case string(catalog.ReportPending), string(catalog.ReportReviewed),
		string(catalog.ReportResolved), string(catalog.ReportDismissed):
		args = append(args, f.Status)
		clause = "where status = $1"
	default:
		return nil, 0, fmt.Errorf("%w: unknown report status %q", catalog.ErrValidation, f.Status)
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from reports `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`select `+reportColumns+` from reports `+clause+` order by created_at desc`,
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var res []catalog.Report
	for rows.Next() {
		rp, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, *rp)
	}
	return res, total, rows.Err()
}

func (s *Store) UpdateReport(ctx context.Context, id string, mutate func(*catalog.Report) error, entry *catalog.AuditEntry) (*catalog.Report, error) {
	var updated *catalog.Report
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`select `+reportColumns+` from reports where id=$1 for update`, id)
		rp, err := scanReport(row)
		if err != nil {
			return err
		}
		if err := mutate(rp); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			update reports set
				status=$2, resolved_by=nullif($3,''), resolved_at=$4,
				resolution_note=nullif($5,'')
			where id=$1
		`,
			id, rp.Status, rp.ResolvedBy, nullTime(rp.ResolvedAt), rp.ResolutionNote,
		); err != nil {
			return err
		}
		if entry != nil {
			if err := insertAudit(ctx, tx, entry); err != nil {
				return err
			}
		}
		updated = rp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
