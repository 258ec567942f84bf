package domain

import "time"

const (
	PostDraft     = "draft"
	PostPublished = "published"
)

type Tag struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Slug string `db:"slug" json:"slug"`
}

type BlogPost struct {
	ID              int64      `db:"id" json:"id"`
	AuthorID        int64      `db:"author_id" json:"author_id"`
	Title           string     `db:"title" json:"title"`
	Slug            string     `db:"slug" json:"slug"`
	Excerpt         string     `db:"excerpt" json:"excerpt"`
	BodyMarkdown    string     `db:"body_markdown" json:"body_markdown"`
	BodyHTML        string     `db:"body_html" json:"body_html"`
	Status          string     `db:"status" json:"status"`
	MetaTitle       string     `db:"meta_title" json:"meta_title"`
	MetaDescription string     `db:"meta_description" json:"meta_description"`
	PublishedAt     *time.Time `db:"published_at" json:"published_at"`
	Tags            []Tag      `json:"tags"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// ApplyStatus stamps PublishedAt the first time a post is published and
// clears it when the post goes back to draft.
func (p *BlogPost) ApplyStatus(status string, now time.Time) {
	p.Status = status
	switch status {
	case PostPublished:
		if p.PublishedAt == nil {
			ts := now
			p.PublishedAt = &ts
		}
	case PostDraft:
		p.PublishedAt = nil
	}
}
