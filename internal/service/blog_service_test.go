package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"nxfs_api/internal/domain"
)

func TestCreatePostSlugSuffixes(t *testing.T) {
	svc := NewBlogService(newFakeBlogStore())
	ctx := context.Background()

	want := []string{"hello-world", "hello-world-2", "hello-world-3"}
	for _, w := range want {
		p, err := svc.CreatePost(ctx, 1, PostInput{Title: strPtr("Hello World")})
		if err != nil {
			t.Fatalf("create post: %v", err)
		}
		if p.Slug != w {
			t.Fatalf("slug = %q; want %q", p.Slug, w)
		}
	}

	// another author gets the bare slug
	p, err := svc.CreatePost(ctx, 2, PostInput{Title: strPtr("Hello World")})
	if err != nil || p.Slug != "hello-world" {
		t.Fatalf("slugs must be unique per author, got %q (%v)", p.Slug, err)
	}
}

func TestMakeSlug(t *testing.T) {
	if got := MakeSlug("!!!", 200, "post"); got != "post" {
		t.Fatalf("empty slug fallback = %q", got)
	}
	long := strings.Repeat("word ", 100)
	if got := MakeSlug(long, 200, "post"); len(got) > 200 || strings.HasSuffix(got, "-") {
		t.Fatalf("slug not truncated cleanly: %q", got)
	}
}

func TestPostRendersSanitizedHTML(t *testing.T) {
	svc := NewBlogService(newFakeBlogStore())
	body := "# Title\n\n<script>alert(1)</script>\n\n**bold**"
	p, err := svc.CreatePost(context.Background(), 1, PostInput{Title: strPtr("x"), BodyMarkdown: &body})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if strings.Contains(p.BodyHTML, "<script") {
		t.Fatalf("script survived sanitizing: %s", p.BodyHTML)
	}
	if !strings.Contains(p.BodyHTML, "<strong>bold</strong>") {
		t.Fatalf("markdown not rendered: %s", p.BodyHTML)
	}
}

func TestUpdatePostOwnership(t *testing.T) {
	svc := NewBlogService(newFakeBlogStore())
	ctx := context.Background()
	p, err := svc.CreatePost(ctx, 1, PostInput{Title: strPtr("Mine")})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if _, err := svc.UpdatePost(ctx, 2, p.ID, PostInput{Title: strPtr("Stolen")}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	published := domain.PostPublished
	up, err := svc.UpdatePost(ctx, 1, p.ID, PostInput{Title: strPtr("Renamed"), Status: &published})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if up.Slug != "mine" {
		t.Fatalf("slug must not follow the title, got %q", up.Slug)
	}
	if up.PublishedAt == nil {
		t.Fatalf("publishing must stamp published_at")
	}
}

func TestCreateTagUniqueSlug(t *testing.T) {
	svc := NewBlogService(newFakeBlogStore())
	ctx := context.Background()
	a, err := svc.CreateTag(ctx, "Go Lang")
	if err != nil {
		t.Fatalf("create tag: %v", err)
	}
	b, err := svc.CreateTag(ctx, "go-lang")
	if err != nil {
		t.Fatalf("create tag: %v", err)
	}
	if a.Slug != "go-lang" || b.Slug != "go-lang-2" {
		t.Fatalf("slugs = %q, %q", a.Slug, b.Slug)
	}
}

func TestGetPublishedSharedSlug(t *testing.T) {
	svc := NewBlogService(newFakeBlogStore())
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	published := domain.PostPublished
	first, err := svc.CreatePost(ctx, 1, PostInput{Title: strPtr("Release notes"), Status: &published})
	if err != nil {
		t.Fatal(err)
	}
	now = now.Add(time.Hour)
	second, err := svc.CreatePost(ctx, 2, PostInput{Title: strPtr("Release notes"), Status: &published})
	if err != nil {
		t.Fatal(err)
	}

	if p, err := svc.GetPublished(ctx, "release-notes", 0); err != nil || p.ID != second.ID {
		t.Fatalf("without author the newest post wins, got %+v %v", p, err)
	}
	if p, err := svc.GetPublished(ctx, "release-notes", 1); err != nil || p.ID != first.ID {
		t.Fatalf("author filter ignored, got %+v %v", p, err)
	}
	if _, err := svc.GetPublished(ctx, "release-notes", 3); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for other author, got %v", err)
	}
}
