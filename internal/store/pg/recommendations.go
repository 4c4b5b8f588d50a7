package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"inkshelf.org/internal/catalog"
	"inkshelf.org/internal/content"
	"inkshelf.org/internal/moderation"
)

const recommendationColumns = `
	id, user_id, title, alternative_titles, description, type, status, genres,
	content_rating, official_platforms, coalesce(author,''), coalesce(artist,''),
	coalesce(year_released,0), coalesce(chapter_count,0), coalesce(cover_url,''),
	coalesce(why_recommend,''), upvotes, downvotes, score, daily_votes,
	save_count, review_count, is_approved, coalesce(rejection_reason,''),
	rejected_at, coalesce(rejected_by,''), is_featured, featured_at,
	coalesce(featured_by,''), appeal_status, coalesce(appeal_text,''),
	appeal_submitted_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecommendation(row rowScanner) (*catalog.Recommendation, error) {
	var (
		rec               catalog.Recommendation
		altTitles         []byte
		genres            []byte
		platforms         []byte
		rejectedAt        sql.NullTime
		featuredAt        sql.NullTime
		appealSubmittedAt sql.NullTime
	)
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.Title, &altTitles, &rec.Description, &rec.Type,
		&rec.Status, &genres, &rec.ContentRating, &platforms, &rec.Author,
		&rec.Artist, &rec.YearReleased, &rec.ChapterCount, &rec.CoverURL,
		&rec.WhyRecommend, &rec.Upvotes, &rec.Downvotes, &rec.Score,
		&rec.DailyVotes, &rec.SaveCount, &rec.ReviewCount, &rec.IsApproved,
		&rec.RejectionReason, &rejectedAt, &rec.RejectedBy, &rec.IsFeatured,
		&featuredAt, &rec.FeaturedBy, &rec.AppealStatus, &rec.AppealText,
		&appealSubmittedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.AlternativeTitles = scanList(altTitles)
	rec.Genres = scanList(genres)
	rec.OfficialPlatforms = scanList(platforms)
	rec.RejectedAt = timePtr(rejectedAt)
	rec.FeaturedAt = timePtr(featuredAt)
	rec.AppealSubmittedAt = timePtr(appealSubmittedAt)
	return &rec, nil
}

func (s *Store) GetRecommendation(ctx context.Context, id string) (*catalog.Recommendation, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+recommendationColumns+` from recommendations where id=$1`, id)
	return scanRecommendation(row)
}

func (s *Store) InsertRecommendation(ctx context.Context, rec *catalog.Recommendation) error {
	_, err := s.db.ExecContext(ctx, `
		insert into recommendations(
			id, user_id, title, alternative_titles, description, type, status,
			genres, content_rating, official_platforms, author, artist,
			year_released, chapter_count, cover_url, why_recommend,
			is_approved, appeal_status, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,
			nullif($11,''), nullif($12,''), nullif($13,0), nullif($14,0),
			nullif($15,''), nullif($16,''), $17, $18, $19, $20)
	`,
		rec.ID, rec.UserID, rec.Title, jsonList(rec.AlternativeTitles),
		rec.Description, rec.Type, rec.Status, jsonList(rec.Genres),
		rec.ContentRating, jsonList(rec.OfficialPlatforms), rec.Author,
		rec.Artist, rec.YearReleased, rec.ChapterCount, rec.CoverURL,
		rec.WhyRecommend, rec.IsApproved, rec.AppealStatus, rec.CreatedAt,
		rec.UpdatedAt,
	)
	return err
}

// UpdateRecommendation locks the row, applies mutate, persists the lifecycle
// fields and appends the audit entry in the same transaction.
func (s *Store) UpdateRecommendation(ctx context.Context, id string, mutate func(*catalog.Recommendation) error, entry *catalog.AuditEntry) (*catalog.Recommendation, error) {
	var updated *catalog.Recommendation
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`select `+recommendationColumns+` from recommendations where id=$1 for update`, id)
		rec, err := scanRecommendation(row)
		if err != nil {
			return err
		}
		if err := mutate(rec); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			update recommendations set
				title=$2, description=$3, author=nullif($4,''), artist=nullif($5,''),
				is_approved=$6, rejection_reason=nullif($7,''), rejected_at=$8,
				rejected_by=nullif($9,''), is_featured=$10, featured_at=$11,
				featured_by=nullif($12,''), appeal_status=$13,
				appeal_text=nullif($14,''), appeal_submitted_at=$15, updated_at=$16
			where id=$1
		`,
			id, rec.Title, rec.Description, rec.Author, rec.Artist,
			rec.IsApproved, rec.RejectionReason, nullTime(rec.RejectedAt),
			rec.RejectedBy, rec.IsFeatured, nullTime(rec.FeaturedAt),
			rec.FeaturedBy, rec.AppealStatus, rec.AppealText,
			nullTime(rec.AppealSubmittedAt), rec.UpdatedAt,
		); err != nil {
			return err
		}
		if entry != nil {
			if err := insertAudit(ctx, tx, entry); err != nil {
				return err
			}
		}
		updated = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func recommendationStatusClause(status string) (string, error) {
	switch status {
	case "", "all":
		return "", nil
	case "pending":
		return "where is_approved = false and rejection_reason is null", nil
	case "approved":
		return "where is_approved = true", nil
	case "rejected":
		return "where rejection_reason is not null", nil
	case "featured":
		return "where is_featured = true", nil
	case "appeals":
		return "where appeal_status = 'pending'", nil
	}
	return "", fmt.Errorf("%w: unknown status filter %q", catalog.ErrValidation, status)
}

func (s *Store) ListRecommendations(ctx context.Context, f moderation.RecommendationFilter) ([]catalog.Recommendation, int, error) {
	clause, err := recommendationStatusClause(f.Status)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from recommendations `+clause).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`select `+recommendationColumns+` from recommendations `+clause+
			` order by created_at desc limit $1 offset $2`,
		f.Page.Size, f.Page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var res []catalog.Recommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, *rec)
	}
	return res, total, rows.Err()
}

func (s *Store) BrowseRecommendations(ctx context.Context, f content.BrowseFilter) ([]catalog.Recommendation, int, error) {
	clause := `where is_approved = true`
	args := []any{}
	if f.Type != "" {
		args = append(args, f.Type)
		clause += fmt.Sprintf(" and type = $%d", len(args))
	}
	if f.Genre != "" {
		args = append(args, f.Genre)
		clause += fmt.Sprintf(" and genres @> to_jsonb(array[$%d::text])", len(args))
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from recommendations `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := "score desc"
	switch f.Sort {
	case "trending":
		order = "daily_votes desc"
	case "recent":
		order = "created_at desc"
	}

	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`select %s from recommendations %s order by %s limit $%d offset $%d`,
			recommendationColumns, clause, order, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var res []catalog.Recommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, *rec)
	}
	return res, total, rows.Err()
}
