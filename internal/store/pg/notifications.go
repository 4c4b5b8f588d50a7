package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"inkshelf.org/internal/catalog"
)

func (s *Store) InsertNotification(ctx context.Context, n *catalog.Notification) error {
	_, err := s.db.ExecContext(ctx, `
		insert into notifications(id, user_id, type, title, data, is_read, created_at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, n.ID, n.UserID, n.Type, n.Title, jsonMap(n.Data), n.IsRead, n.CreatedAt)
	return err
}

func (s *Store) ListNotifications(ctx context.Context, userID string, page, perPage int) ([]catalog.Notification, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from notifications where user_id=$1`,
		userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select id, user_id, type, title, data, is_read, read_at, created_at
		from notifications where user_id=$1
		order by created_at desc limit $2 offset $3
	`, userID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var res []catalog.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, *n)
	}
	return res, total, rows.Err()
}

func scanNotification(row rowScanner) (*catalog.Notification, error) {
	var (
		n      catalog.Notification
		data   []byte
		readAt sql.NullTime
	)
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &data, &n.IsRead,
		&readAt, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	n.Data = scanMap(data)
	n.ReadAt = timePtr(readAt)
	return &n, nil
}

// MarkNotificationRead flips the flag only when the notification belongs to
// userID; a foreign id reads as not found.
func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) (*catalog.Notification, error) {
	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx, `
		update notifications set is_read=true, read_at=coalesce(read_at,$3)
		where id=$1 and user_id=$2
		returning id, user_id, type, title, data, is_read, read_at, created_at
	`, id, userID, now)
	return scanNotification(row)
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		update notifications set is_read=true, read_at=coalesce(read_at,$2)
		where user_id=$1 and is_read=false
	`, userID, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
