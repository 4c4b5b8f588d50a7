package pg

import (
	"context"
	"database/sql"
	"errors"

	"inkshelf.org/internal/catalog"
)

const reviewColumns = `
	id, user_id, recommendation_id, content, coalesce(rating,0),
	contains_spoilers, is_approved, created_at, updated_at`

func scanReview(row rowScanner) (*catalog.Review, error) {
	var rv catalog.Review
	err := row.Scan(
		&rv.ID, &rv.UserID, &rv.RecommendationID, &rv.Content, &rv.Rating,
		&rv.ContainsSpoilers, &rv.IsApproved, &rv.CreatedAt, &rv.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rv, nil
}

func (s *Store) GetReview(ctx context.Context, id string) (*catalog.Review, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+reviewColumns+` from reviews where id=$1`, id)
	return scanReview(row)
}

func (s *Store) InsertReview(ctx context.Context, rv *catalog.Review) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			insert into reviews(id, user_id, recommendation_id, content, rating,
				contains_spoilers, is_approved, created_at, updated_at)
			values ($1,$2,$3,$4,nullif($5,0),$6,$7,$8,$9)
		`,
			rv.ID, rv.UserID, rv.RecommendationID, rv.Content, rv.Rating,
			rv.ContainsSpoilers, rv.IsApproved, rv.CreatedAt, rv.UpdatedAt,
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`update recommendations set review_count = review_count + 1, updated_at = $2 where id = $1`,
			rv.RecommendationID, rv.UpdatedAt)
		return err
	})
}

func (s *Store) ListReviews(ctx context.Context, recommendationID string, page, perPage int) ([]catalog.Review, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from reviews where recommendation_id=$1 and is_approved=true`,
		recommendationID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`select `+reviewColumns+` from reviews
		 where recommendation_id=$1 and is_approved=true
		 order by created_at desc limit $2 offset $3`,
		recommendationID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var res []catalog.Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, *rv)
	}
	return res, total, rows.Err()
}

func (s *Store) UpdateReview(ctx context.Context, id string, mutate func(*catalog.Review) error, entry *catalog.AuditEntry) (*catalog.Review, error) {
	var updated *catalog.Review
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`select `+reviewColumns+` from reviews where id=$1 for update`, id)
		rv, err := scanReview(row)
		if err != nil {
			return err
		}
		if err := mutate(rv); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`update reviews set is_approved=$2, updated_at=$3 where id=$1`,
			id, rv.IsApproved, rv.UpdatedAt,
		); err != nil {
			return err
		}
		if entry != nil {
			if err := insertAudit(ctx, tx, entry); err != nil {
				return err
			}
		}
		updated = rv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteReview removes the row and decrements the parent counter; the audit
// record of the removal lands in the same transaction.
func (s *Store) DeleteReview(ctx context.Context, id string, entry *catalog.AuditEntry) (*catalog.Review, error) {
	var deleted *catalog.Review
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`select `+reviewColumns+` from reviews where id=$1 for update`, id)
		rv, err := scanReview(row)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `delete from reviews where id=$1`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`update recommendations set review_count = greatest(review_count - 1, 0) where id = $1`,
			rv.RecommendationID,
		); err != nil {
			return err
		}
		if entry != nil {
			if err := insertAudit(ctx, tx, entry); err != nil {
				return err
			}
		}
		deleted = rv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}
