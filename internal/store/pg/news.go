package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"inkshelf.org/internal/catalog"
	"inkshelf.org/internal/content"
)

const newsColumns = `
	id, title, slug, excerpt, coalesce(content,''), source_name, source_url,
	category, tags, is_published, coalesce(published_by,''), published_at,
	created_at, updated_at`

func scanNewsItem(row rowScanner) (*catalog.NewsItem, error) {
	var (
		item catalog.NewsItem
		tags []byte
	)
	err := row.Scan(
		&item.ID, &item.Title, &item.Slug, &item.Excerpt, &item.Content,
		&item.SourceName, &item.SourceURL, &item.Category, &tags,
		&item.IsPublished, &item.PublishedBy, &item.PublishedAt,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	item.Tags = scanList(tags)
	return &item, nil
}

func (s *Store) ListNews(ctx context.Context, f content.NewsFilter) ([]catalog.NewsItem, int, error) {
	clause := ""
	args := []any{}
	and := func(cond string) {
		if clause == "" {
			clause = "where " + cond
		} else {
			clause += " and " + cond
		}
	}
	if f.PublishedOnly {
		and("is_published = true")
	}
	if f.Category != "" {
		args = append(args, f.Category)
		and(fmt.Sprintf("category = $%d", len(args)))
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from news `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`select %s from news %s order by published_at desc limit $%d offset $%d`,
			newsColumns, clause, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var res []catalog.NewsItem
	for rows.Next() {
		item, err := scanNewsItem(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, *item)
	}
	return res, total, rows.Err()
}

func (s *Store) GetNewsBySlug(ctx context.Context, slug string) (*catalog.NewsItem, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+newsColumns+` from news where slug=$1`, slug)
	return scanNewsItem(row)
}

func (s *Store) InsertNews(ctx context.Context, item *catalog.NewsItem, entry *catalog.AuditEntry) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			insert into news(id, title, slug, excerpt, content, source_name,
				source_url, category, tags, is_published, published_by,
				published_at, created_at, updated_at)
			values ($1,$2,$3,$4,nullif($5,''),$6,$7,$8,$9,$10,nullif($11,''),$12,$13,$14)
		`,
			item.ID, item.Title, item.Slug, item.Excerpt, item.Content,
			item.SourceName, item.SourceURL, item.Category, jsonList(item.Tags),
			item.IsPublished, item.PublishedBy, item.PublishedAt,
			item.CreatedAt, item.UpdatedAt,
		); err != nil {
			return err
		}
		if entry != nil {
			return insertAudit(ctx, tx, entry)
		}
		return nil
	})
}

func (s *Store) UpdateNews(ctx context.Context, id string, mutate func(*catalog.NewsItem) error, entry *catalog.AuditEntry) (*catalog.NewsItem, error) {
	var updated *catalog.NewsItem
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`select `+newsColumns+` from news where id=$1 for update`, id)
		item, err := scanNewsItem(row)
		if err != nil {
			return err
		}
		if err := mutate(item); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			update news set
				title=$2, slug=$3, excerpt=$4, content=nullif($5,''),
				source_name=$6, source_url=$7, category=$8, tags=$9,
				is_published=$10, published_at=$11, updated_at=$12
			where id=$1
		`,
			id, item.Title, item.Slug, item.Excerpt, item.Content,
			item.SourceName, item.SourceURL, item.Category, jsonList(item.Tags),
			item.IsPublished, item.PublishedAt, item.UpdatedAt,
		); err != nil {
			return err
		}
		if entry != nil {
			if err := insertAudit(ctx, tx, entry); err != nil {
				return err
			}
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) DeleteNews(ctx context.Context, id string, entry *catalog.AuditEntry) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `delete from news where id=$1`, id)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return catalog.ErrNotFound
		}
		if entry != nil {
			return insertAudit(ctx, tx, entry)
		}
		return nil
	})
}
