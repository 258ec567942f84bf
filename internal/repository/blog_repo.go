package repository

import (
	"context"

	"nxfs_api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BlogRepository struct {
	db *pgxpool.Pool
}

func NewBlogRepository(db *pgxpool.Pool) *BlogRepository {
	return &BlogRepository{db: db}
}

const postColumns = `id, author_id, title, slug, excerpt, body_markdown, body_html, status,
	meta_title, meta_description, published_at, created_at, updated_at`

func scanPost(row pgx.Row) (*domain.BlogPost, error) {
	var p domain.BlogPost
	err := row.Scan(&p.ID, &p.AuthorID, &p.Title, &p.Slug, &p.Excerpt, &p.BodyMarkdown, &p.BodyHTML,
		&p.Status, &p.MetaTitle, &p.MetaDescription, &p.PublishedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Tags = []domain.Tag{}
	return &p, nil
}

func (r *BlogRepository) CreatePost(ctx context.Context, p *domain.BlogPost, tagIDs []int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO blog_posts (author_id, title, slug, excerpt, body_markdown, body_html, status,
		                         meta_title, meta_description, published_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at, updated_at`,
		p.AuthorID, p.Title, p.Slug, p.Excerpt, p.BodyMarkdown, p.BodyHTML, p.Status,
		p.MetaTitle, p.MetaDescription, p.PublishedAt,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	if err := setPostTags(ctx, tx, p.ID, tagIDs); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpdatePost rewrites the post; tagIDs nil leaves the tag set alone.
func (r *BlogRepository) UpdatePost(ctx context.Context, p *domain.BlogPost, tagIDs []int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`UPDATE blog_posts
		 SET title = $2, slug = $3, excerpt = $4, body_markdown = $5, body_html = $6, status = $7,
		     meta_title = $8, meta_description = $9, published_at = $10, updated_at = NOW()
		 WHERE id = $1
		 RETURNING updated_at`,
		p.ID, p.Title, p.Slug, p.Excerpt, p.BodyMarkdown, p.BodyHTML, p.Status,
		p.MetaTitle, p.MetaDescription, p.PublishedAt,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	if tagIDs != nil {
		if err := setPostTags(ctx, tx, p.ID, tagIDs); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func setPostTags(ctx context.Context, tx pgx.Tx, postID int64, ids []int64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM blog_post_tags WHERE post_id = $1`, postID); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO blog_post_tags (post_id, tag_id)
		 SELECT $1, UNNEST($2::bigint[])
		 ON CONFLICT DO NOTHING`,
		postID, ids,
	)
	return mapError(err)
}

func (r *BlogRepository) GetPost(ctx context.Context, id int64) (*domain.BlogPost, error) {
	p, err := scanPost(r.db.QueryRow(ctx, `SELECT `+postColumns+` FROM blog_posts WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return p, r.attachTags(ctx, []*domain.BlogPost{p})
}

// GetPublishedBySlug returns the published post of authorID with slug. Slugs
// are only unique per author, so authorID 0 picks the most recently published.
func (r *BlogRepository) GetPublishedBySlug(ctx context.Context, slug string, authorID int64) (*domain.BlogPost, error) {
	p, err := scanPost(r.db.QueryRow(ctx,
		`SELECT `+postColumns+` FROM blog_posts
		 WHERE slug = $1 AND status = 'published'
		   AND ($2 = 0 OR author_id = $2)
		 ORDER BY published_at DESC, id DESC
		 LIMIT 1`, slug, authorID))
	if err != nil {
		return nil, mapError(err)
	}
	return p, r.attachTags(ctx, []*domain.BlogPost{p})
}

// ListPublished returns published posts, optionally filtered by tag slug.
func (r *BlogRepository) ListPublished(ctx context.Context, tagSlug string) ([]*domain.BlogPost, error) {
	return r.listPosts(ctx,
		`SELECT `+postColumns+` FROM blog_posts bp
		 WHERE status = 'published'
		   AND ($1 = '' OR EXISTS (
		       SELECT 1 FROM blog_post_tags bpt JOIN tags t ON t.id = bpt.tag_id
		       WHERE bpt.post_id = bp.id AND t.slug = $1))
		 ORDER BY published_at DESC
		 LIMIT 200`, tagSlug)
}

func (r *BlogRepository) ListByAuthor(ctx context.Context, authorID int64) ([]*domain.BlogPost, error) {
	return r.listPosts(ctx,
		`SELECT `+postColumns+` FROM blog_posts WHERE author_id = $1 ORDER BY updated_at DESC LIMIT 200`,
		authorID)
}

func (r *BlogRepository) listPosts(ctx context.Context, query string, args ...any) ([]*domain.BlogPost, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	posts := []*domain.BlogPost{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		posts = append(posts, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return posts, r.attachTags(ctx, posts)
}

func (r *BlogRepository) attachTags(ctx context.Context, posts []*domain.BlogPost) error {
	if len(posts) == 0 {
		return nil
	}
	byID := make(map[int64]*domain.BlogPost, len(posts))
	ids := make([]int64, 0, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	rows, err := r.db.Query(ctx,
		`SELECT bpt.post_id, t.id, t.name, t.slug
		 FROM blog_post_tags bpt JOIN tags t ON t.id = bpt.tag_id
		 WHERE bpt.post_id = ANY($1::bigint[])
		 ORDER BY t.name`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var postID int64
		var t domain.Tag
		if err := rows.Scan(&postID, &t.ID, &t.Name, &t.Slug); err != nil {
			return err
		}
		if p := byID[postID]; p != nil {
			p.Tags = append(p.Tags, t)
		}
	}
	return rows.Err()
}

// SlugTaken reports whether another post of the author already uses slug.
func (r *BlogRepository) SlugTaken(ctx context.Context, authorID int64, slug string, excludeID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM blog_posts WHERE author_id = $1 AND slug = $2 AND id <> $3)`,
		authorID, slug, excludeID,
	).Scan(&exists)
	return exists, err
}

func (r *BlogRepository) ListTags(ctx context.Context) ([]*domain.Tag, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, slug FROM tags ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []*domain.Tag{}
	for rows.Next() {
		var t domain.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug); err != nil {
			return nil, err
		}
		tags = append(tags, &t)
	}
	return tags, rows.Err()
}

func (r *BlogRepository) CreateTag(ctx context.Context, t *domain.Tag) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO tags (name, slug) VALUES ($1, $2) RETURNING id`,
		t.Name, t.Slug,
	).Scan(&t.ID)
	return mapError(err)
}

func (r *BlogRepository) TagSlugTaken(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tags WHERE slug = $1)`, slug).Scan(&exists)
	return exists, err
}
