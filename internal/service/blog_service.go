package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"nxfs_api/internal/domain"

	"github.com/gosimple/slug"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

type BlogStore interface {
	CreatePost(ctx context.Context, p *domain.BlogPost, tagIDs []int64) error
	UpdatePost(ctx context.Context, p *domain.BlogPost, tagIDs []int64) error
	GetPost(ctx context.Context, id int64) (*domain.BlogPost, error)
	GetPublishedBySlug(ctx context.Context, slug string, authorID int64) (*domain.BlogPost, error)
	ListPublished(ctx context.Context, tagSlug string) ([]*domain.BlogPost, error)
	ListByAuthor(ctx context.Context, authorID int64) ([]*domain.BlogPost, error)
	SlugTaken(ctx context.Context, authorID int64, slug string, excludeID int64) (bool, error)
	ListTags(ctx context.Context) ([]*domain.Tag, error)
	CreateTag(ctx context.Context, t *domain.Tag) error
	TagSlugTaken(ctx context.Context, slug string) (bool, error)
}

const (
	maxPostSlugLen = 200
	maxTagSlugLen  = 60
)

type BlogService struct {
	store    BlogStore
	markdown goldmark.Markdown
	policy   *bluemonday.Policy
	now      func() time.Time
}

func NewBlogService(store BlogStore) *BlogService {
	return &BlogService{
		store:    store,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy:   bluemonday.UGCPolicy(),
		now:      time.Now,
	}
}

type PostInput struct {
	Title           *string  `json:"title"`
	Slug            *string  `json:"slug"`
	Excerpt         *string  `json:"excerpt"`
	BodyMarkdown    *string  `json:"body_markdown"`
	Status          *string  `json:"status"`
	MetaTitle       *string  `json:"meta_title"`
	MetaDescription *string  `json:"meta_description"`
	TagIDs          *[]int64 `json:"tag_ids"`
}

// RenderMarkdown converts markdown to sanitized HTML.
func (s *BlogService) RenderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return string(s.policy.SanitizeBytes(buf.Bytes())), nil
}

func (s *BlogService) CreatePost(ctx context.Context, authorID int64, in PostInput) (*domain.BlogPost, error) {
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return nil, domain.NewValidationError("title", "This field is required.")
	}
	p := &domain.BlogPost{AuthorID: authorID, Status: domain.PostDraft, Tags: []domain.Tag{}}
	if err := s.apply(p, in); err != nil {
		return nil, err
	}

	base := p.Title
	if in.Slug != nil && strings.TrimSpace(*in.Slug) != "" {
		base = *in.Slug
	}
	sl, err := s.uniquePostSlug(ctx, authorID, base, 0)
	if err != nil {
		return nil, err
	}
	p.Slug = sl

	var tagIDs []int64
	if in.TagIDs != nil {
		tagIDs = *in.TagIDs
	}
	if err := s.store.CreatePost(ctx, p, tagIDs); err != nil {
		return nil, err
	}
	return s.store.GetPost(ctx, p.ID)
}

// UpdatePost edits a post owned by authorID. The slug only changes when given explicitly.
func (s *BlogService) UpdatePost(ctx context.Context, authorID, id int64, in PostInput) (*domain.BlogPost, error) {
	p, err := s.store.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.AuthorID != authorID {
		return nil, domain.ErrForbidden
	}
	if err := s.apply(p, in); err != nil {
		return nil, err
	}
	if in.Slug != nil && strings.TrimSpace(*in.Slug) != "" {
		if p.Slug, err = s.uniquePostSlug(ctx, authorID, *in.Slug, p.ID); err != nil {
			return nil, err
		}
	}

	var tagIDs []int64
	if in.TagIDs != nil {
		tagIDs = nonNilIDs(*in.TagIDs)
	}
	if err := s.store.UpdatePost(ctx, p, tagIDs); err != nil {
		return nil, err
	}
	return s.store.GetPost(ctx, p.ID)
}

func (s *BlogService) apply(p *domain.BlogPost, in PostInput) error {
	verr := &domain.ValidationError{Message: "Invalid input data"}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			verr.Add("title", "This field may not be blank.")
		}
		p.Title = title
	}
	if in.Excerpt != nil {
		p.Excerpt = *in.Excerpt
	}
	if in.MetaTitle != nil {
		if len(*in.MetaTitle) > 70 {
			verr.Add("meta_title", "Ensure this field has no more than 70 characters.")
		}
		p.MetaTitle = *in.MetaTitle
	}
	if in.MetaDescription != nil {
		if len(*in.MetaDescription) > 160 {
			verr.Add("meta_description", "Ensure this field has no more than 160 characters.")
		}
		p.MetaDescription = *in.MetaDescription
	}
	if in.BodyMarkdown != nil {
		html, err := s.RenderMarkdown(*in.BodyMarkdown)
		if err != nil {
			verr.Add("body_markdown", err.Error())
		}
		p.BodyMarkdown = *in.BodyMarkdown
		p.BodyHTML = html
	}
	if in.Status != nil {
		switch *in.Status {
		case domain.PostDraft, domain.PostPublished:
			p.ApplyStatus(*in.Status, s.now())
		default:
			verr.Add("status", fmt.Sprintf("%q is not a valid choice.", *in.Status))
		}
	}
	return verr.OrNil()
}

// MakeSlug slugifies s, truncated to max runes, falling back to fallback.
func MakeSlug(s string, max int, fallback string) string {
	out := slug.Make(s)
	if r := []rune(out); len(r) > max {
		out = strings.TrimRight(string(r[:max]), "-")
	}
	if out == "" {
		return fallback
	}
	return out
}

// uniquePostSlug appends -2, -3, ... until the slug is free for the author.
func (s *BlogService) uniquePostSlug(ctx context.Context, authorID int64, base string, excludeID int64) (string, error) {
	root := MakeSlug(base, maxPostSlugLen, "post")
	candidate := root
	for n := 2; ; n++ {
		taken, err := s.store.SlugTaken(ctx, authorID, candidate, excludeID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		suffix := fmt.Sprintf("-%d", n)
		trimmed := root
		if len(trimmed)+len(suffix) > maxPostSlugLen {
			trimmed = strings.TrimRight(trimmed[:maxPostSlugLen-len(suffix)], "-")
		}
		candidate = trimmed + suffix
	}
}

// GetPublished looks a post up by slug. authorID 0 means any author, in
// which case the newest published post wins.
func (s *BlogService) GetPublished(ctx context.Context, slug string, authorID int64) (*domain.BlogPost, error) {
	return s.store.GetPublishedBySlug(ctx, slug, authorID)
}

// GetOwn returns a post of authorID regardless of status.
func (s *BlogService) GetOwn(ctx context.Context, authorID, id int64) (*domain.BlogPost, error) {
	p, err := s.store.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.AuthorID != authorID {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (s *BlogService) ListPublished(ctx context.Context, tagSlug string) ([]*domain.BlogPost, error) {
	return s.store.ListPublished(ctx, tagSlug)
}

func (s *BlogService) ListOwn(ctx context.Context, authorID int64) ([]*domain.BlogPost, error) {
	return s.store.ListByAuthor(ctx, authorID)
}

func (s *BlogService) ListTags(ctx context.Context) ([]*domain.Tag, error) {
	return s.store.ListTags(ctx)
}

func (s *BlogService) CreateTag(ctx context.Context, name string) (*domain.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewValidationError("name", "This field may not be blank.")
	}
	root := MakeSlug(name, maxTagSlugLen, "tag")
	candidate := root
	for n := 2; ; n++ {
		taken, err := s.store.TagSlugTaken(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if !taken {
			break
		}
		candidate = fmt.Sprintf("%s-%d", root, n)
	}

	t := &domain.Tag{Name: name, Slug: candidate}
	if err := s.store.CreateTag(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}
