package pg

import (
	"context"
	"database/sql"
	"errors"

	"inkshelf.org/internal/catalog"
)

// UpsertVote records or flips a user's vote and recomputes the recommendation
// counters in the same transaction. Re-casting the same vote is a no-op.
func (s *Store) UpsertVote(ctx context.Context, v *catalog.Vote) (*catalog.Recommendation, error) {
	var updated *catalog.Recommendation
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`select `+recommendationColumns+` from recommendations where id=$1 for update`,
			v.RecommendationID)
		rec, err := scanRecommendation(row)
		if err != nil {
			return err
		}

		var prior string
		err = tx.QueryRowContext(ctx,
			`select vote_type from votes where user_id=$1 and recommendation_id=$2`,
			v.UserID, v.RecommendationID).Scan(&prior)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := tx.ExecContext(ctx, `
				insert into votes(id, user_id, recommendation_id, vote_type, created_at)
				values ($1,$2,$3,$4,$5)
			`, v.ID, v.UserID, v.RecommendationID, v.VoteType, v.CreatedAt); err != nil {
				return err
			}
		case err != nil:
			return err
		case prior == v.VoteType:
			updated = rec
			return nil
		default:
			if _, err := tx.ExecContext(ctx, `
				update votes set vote_type=$3, created_at=$4
				where user_id=$1 and recommendation_id=$2
			`, v.UserID, v.RecommendationID, v.VoteType, v.CreatedAt); err != nil {
				return err
			}
			if prior == "up" {
				rec.Upvotes--
			} else {
				rec.Downvotes--
			}
		}

		if v.VoteType == "up" {
			rec.Upvotes++
		} else {
			rec.Downvotes++
		}
		rec.Score = rec.Upvotes - rec.Downvotes
		rec.DailyVotes++

		if _, err := tx.ExecContext(ctx, `
			update recommendations set
				upvotes=$2, downvotes=$3, score=$4, daily_votes=$5, updated_at=$6
			where id=$1
		`, rec.ID, rec.Upvotes, rec.Downvotes, rec.Score, rec.DailyVotes,
			v.CreatedAt); err != nil {
			return err
		}
		updated = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) InsertSave(ctx context.Context, sv *catalog.Save) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			insert into saves(id, user_id, recommendation_id, created_at)
			values ($1,$2,$3,$4)
			on conflict (user_id, recommendation_id) do nothing
		`, sv.ID, sv.UserID, sv.RecommendationID, sv.CreatedAt)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`update recommendations set save_count = save_count + 1 where id = $1`,
			sv.RecommendationID)
		return err
	})
}

func (s *Store) DeleteSave(ctx context.Context, userID, recommendationID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`delete from saves where user_id=$1 and recommendation_id=$2`,
			userID, recommendationID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`update recommendations set save_count = greatest(save_count - 1, 0) where id = $1`,
			recommendationID)
		return err
	})
}
