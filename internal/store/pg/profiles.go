package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"inkshelf.org/internal/catalog"
	"inkshelf.org/internal/moderation"
)

const profileColumns = `
	id, username, coalesce(display_name,''), role, is_banned,
	coalesce(ban_reason,''), banned_at, coalesce(banned_by,''),
	appeal_status, coalesce(appeal_text,''), member_since, updated_at`

func scanProfile(row rowScanner) (*catalog.Profile, error) {
	var (
		p        catalog.Profile
		bannedAt sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.Username, &p.DisplayName, &p.Role, &p.IsBanned,
		&p.BanReason, &bannedAt, &p.BannedBy, &p.AppealStatus, &p.AppealText,
		&p.MemberSince, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.BannedAt = timePtr(bannedAt)
	return &p, nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (*catalog.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+profileColumns+` from profiles where id=$1`, id)
	return scanProfile(row)
}

func (s *Store) UpdateProfile(ctx context.Context, id string, mutate func(*catalog.Profile) error, entry *catalog.AuditEntry) (*catalog.Profile, error) {
	var updated *catalog.Profile
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`select `+profileColumns+` from profiles where id=$1 for update`, id)
		p, err := scanProfile(row)
		if err != nil {
			return err
		}
		if err := mutate(p); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			update profiles set
				role=$2, is_banned=$3, ban_reason=nullif($4,''), banned_at=$5,
				banned_by=nullif($6,''), appeal_status=$7,
				appeal_text=nullif($8,''), updated_at=$9
			where id=$1
		`,
			id, p.Role, p.IsBanned, p.BanReason, nullTime(p.BannedAt),
			p.BannedBy, p.AppealStatus, p.AppealText, p.UpdatedAt,
		); err != nil {
			return err
		}
		if entry != nil {
			if err := insertAudit(ctx, tx, entry); err != nil {
				return err
			}
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func profileFilterClause(f moderation.ProfileFilter) (string, []any, error) {
	clause := ""
	args := []any{}
	and := func(cond string) {
		if clause == "" {
			clause = "where " + cond
		} else {
			clause += " and " + cond
		}
	}
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		and(fmt.Sprintf("username ilike $%d", len(args)))
	}
	switch f.Filter {
	case "", "all":
	case "banned":
		and("is_banned = true")
	case "admin":
		and("role = 'admin'")
	case "moderator":
		and("role = 'moderator'")
	default:
		return "", nil, fmt.Errorf("%w: unknown account filter %q", catalog.ErrValidation, f.Filter)
	}
	return clause, args, nil
}

func (s *Store) ListProfiles(ctx context.Context, f moderation.ProfileFilter) ([]catalog.Profile, int, error) {
	clause, args, err := profileFilterClause(f)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from profiles `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Page.Size, f.Page.Offset())
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`select %s from profiles %s order by member_since desc limit $%d offset $%d`,
			profileColumns, clause, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var res []catalog.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, *p)
	}
	return res, total, rows.Err()
}
