package repository

import (
	"context"
	"encoding/json"

	"nxfs_api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProviderRepository struct {
	db *pgxpool.Pool
}

func NewProviderRepository(db *pgxpool.Pool) *ProviderRepository {
	return &ProviderRepository{db: db}
}

const providerSelect = `
	SELECT p.id, p.name, p.url, p.description, p.description_nb, p.strengths_en, p.strengths_no,
	       p.pricing, p.pricing_nb, p.created_at, p.updated_at,
	       COALESCE((SELECT json_agg(json_build_object('id', t.id, 'name', t.name, 'slug', t.slug) ORDER BY t.name)
	                 FROM llm_provider_tags pt JOIN tags t ON t.id = pt.tag_id
	                 WHERE pt.provider_id = p.id), '[]'::json)
	FROM llm_providers p`

func scanProvider(row pgx.Row) (*domain.LLMProvider, error) {
	var p domain.LLMProvider
	var strengthsEN, strengthsNO, tags []byte
	err := row.Scan(&p.ID, &p.Name, &p.URL, &p.Description, &p.DescriptionNB, &strengthsEN, &strengthsNO,
		&p.Pricing, &p.PricingNB, &p.CreatedAt, &p.UpdatedAt, &tags)
	if err != nil {
		return nil, err
	}
	p.StrengthsEN = decodeStrings(strengthsEN)
	p.StrengthsNO = decodeStrings(strengthsNO)
	if err := json.Unmarshal(tags, &p.Tags); err != nil || p.Tags == nil {
		p.Tags = []domain.Tag{}
	}
	return &p, nil
}

func decodeStrings(raw []byte) []string {
	out := []string{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	if out == nil {
		out = []string{}
	}
	return out
}

func (r *ProviderRepository) List(ctx context.Context) ([]*domain.LLMProvider, error) {
	rows, err := r.db.Query(ctx, providerSelect+` ORDER BY p.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	providers := []*domain.LLMProvider{}
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

func (r *ProviderRepository) Get(ctx context.Context, id int64) (*domain.LLMProvider, error) {
	p, err := scanProvider(r.db.QueryRow(ctx, providerSelect+` WHERE p.id = $1`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

func (r *ProviderRepository) Create(ctx context.Context, p *domain.LLMProvider, tagIDs []int64) error {
	strengthsEN, _ := json.Marshal(nonNil(p.StrengthsEN))
	strengthsNO, _ := json.Marshal(nonNil(p.StrengthsNO))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO llm_providers (name, url, description, description_nb, strengths_en, strengths_no, pricing, pricing_nb)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		p.Name, p.URL, p.Description, p.DescriptionNB, strengthsEN, strengthsNO, p.Pricing, p.PricingNB,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapError(err)
	}

	if len(tagIDs) > 0 {
		_, err = tx.Exec(ctx,
			`INSERT INTO llm_provider_tags (provider_id, tag_id)
			 SELECT $1, UNNEST($2::bigint[])
			 ON CONFLICT DO NOTHING`,
			p.ID, tagIDs,
		)
		if err != nil {
			return mapError(err)
		}
	}
	return tx.Commit(ctx)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
