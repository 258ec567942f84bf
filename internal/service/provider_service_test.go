package service

import (
	"context"
	"errors"
	"testing"

	"nxfs_api/internal/domain"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
)

type fakeProviderStore struct {
	providers []*domain.LLMProvider
	lists     int
}

func (f *fakeProviderStore) List(context.Context) ([]*domain.LLMProvider, error) {
	f.lists++
	return f.providers, nil
}

func (f *fakeProviderStore) Get(_ context.Context, id int64) (*domain.LLMProvider, error) {
	for _, p := range f.providers {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeProviderStore) Create(_ context.Context, p *domain.LLMProvider, _ []int64) error {
	p.ID = int64(len(f.providers) + 1)
	f.providers = append(f.providers, p)
	return nil
}

func TestProviderListCachedUntilCreate(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := &fakeProviderStore{providers: []*domain.LLMProvider{{ID: 1, Name: "Claude", Pricing: domain.PricingPaid}}}
	svc := NewProviderService(store, rdb)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := svc.List(ctx)
		if err != nil || len(got) != 1 || got[0].Name != "Claude" {
			t.Fatalf("list: %v %v", got, err)
		}
	}
	if store.lists != 1 {
		t.Fatalf("store hit %d times; want 1", store.lists)
	}
	if ttl := mr.TTL(providerListKey); ttl != ProviderListTTL {
		t.Fatalf("cache ttl = %s", ttl)
	}

	if _, err := svc.Create(ctx, ProviderInput{Name: "Mistral", URL: "https://mistral.ai"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, _ := svc.List(ctx)
	if len(got) != 2 || store.lists != 2 {
		t.Fatalf("create must invalidate the cache (lists=%d, got=%d)", store.lists, len(got))
	}
}

func TestProviderCreateValidation(t *testing.T) {
	svc := NewProviderService(&fakeProviderStore{}, nil)
	_, err := svc.Create(context.Background(), ProviderInput{Name: "x", URL: "ftp://x", Pricing: "Cheap", PricingNB: "Billig"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, f := range []string{"url", "pricing", "pricing_nb"} {
		if len(verr.Fields[f]) == 0 {
			t.Fatalf("missing %s error: %+v", f, verr.Fields)
		}
	}

	p, err := svc.Create(context.Background(), ProviderInput{Name: "Free one", URL: "https://example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Pricing != domain.PricingFree || p.PricingNB != domain.PricingFreeNB {
		t.Fatalf("default pricing not applied: %+v", p)
	}
}
