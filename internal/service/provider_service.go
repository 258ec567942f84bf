package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"nxfs_api/internal/domain"
	"nxfs_api/internal/logger"

	redis "github.com/redis/go-redis/v9"
)

const (
	providerListKey = "llm_providers:list"
	ProviderListTTL = 10 * time.Minute
)

type ProviderStore interface {
	List(ctx context.Context) ([]*domain.LLMProvider, error)
	Get(ctx context.Context, id int64) (*domain.LLMProvider, error)
	Create(ctx context.Context, p *domain.LLMProvider, tagIDs []int64) error
}

// ProviderService serves LLM provider metadata. The public list is cached
// in Redis when a client is configured.
type ProviderService struct {
	store ProviderStore
	rdb   *redis.Client
	ttl   time.Duration
}

func NewProviderService(store ProviderStore, rdb *redis.Client) *ProviderService {
	return &ProviderService{store: store, rdb: rdb, ttl: ProviderListTTL}
}

func (s *ProviderService) List(ctx context.Context) ([]*domain.LLMProvider, error) {
	if s.rdb != nil {
		raw, err := s.rdb.Get(ctx, providerListKey).Bytes()
		if err == nil {
			var cached []*domain.LLMProvider
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			logger.WithContext(ctx).Warn("provider cache read failed", "error", err)
		}
	}

	providers, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if raw, err := json.Marshal(providers); err == nil {
			if err := s.rdb.Set(ctx, providerListKey, raw, s.ttl).Err(); err != nil {
				logger.WithContext(ctx).Warn("provider cache write failed", "error", err)
			}
		}
	}
	return providers, nil
}

func (s *ProviderService) Get(ctx context.Context, id int64) (*domain.LLMProvider, error) {
	return s.store.Get(ctx, id)
}

type ProviderInput struct {
	Name          string   `json:"name" binding:"required,max=100"`
	URL           string   `json:"url" binding:"required"`
	Description   string   `json:"description"`
	DescriptionNB string   `json:"description_nb"`
	StrengthsEN   []string `json:"strengths_en"`
	StrengthsNO   []string `json:"strengths_no"`
	Pricing       string   `json:"pricing"`
	PricingNB     string   `json:"pricing_nb"`
	TagIDs        []int64  `json:"tag_ids"`
}

func (s *ProviderService) Create(ctx context.Context, in ProviderInput) (*domain.LLMProvider, error) {
	verr := &domain.ValidationError{Message: "Invalid input data"}
	if u, err := url.Parse(in.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		verr.Add("url", "Enter a valid URL.")
	}
	if in.Pricing == "" {
		in.Pricing = domain.PricingFree
	}
	if in.PricingNB == "" {
		in.PricingNB = domain.PricingFreeNB
	}
	if in.Pricing != domain.PricingFree && in.Pricing != domain.PricingPaid {
		verr.Add("pricing", `"`+in.Pricing+`" is not a valid choice.`)
	}
	if in.PricingNB != domain.PricingFreeNB && in.PricingNB != domain.PricingPaidNB {
		verr.Add("pricing_nb", `"`+in.PricingNB+`" is not a valid choice.`)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	p := &domain.LLMProvider{
		Name:          strings.TrimSpace(in.Name),
		URL:           in.URL,
		Description:   in.Description,
		DescriptionNB: in.DescriptionNB,
		StrengthsEN:   in.StrengthsEN,
		StrengthsNO:   in.StrengthsNO,
		Pricing:       in.Pricing,
		PricingNB:     in.PricingNB,
	}
	if err := s.store.Create(ctx, p, dedupeIDs(in.TagIDs)); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return s.store.Get(ctx, p.ID)
}

func (s *ProviderService) invalidate(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, providerListKey).Err(); err != nil {
		logger.WithContext(ctx).Warn("provider cache invalidation failed", "error", err)
	}
}
