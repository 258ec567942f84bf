package domain

import "time"

const (
	PricingFree = "Free"
	PricingPaid = "Paid"

	PricingFreeNB = "Gratis"
	PricingPaidNB = "Betalt"
)

type LLMProvider struct {
	ID            int64     `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	URL           string    `db:"url" json:"url"`
	Description   string    `db:"description" json:"description"`
	DescriptionNB string    `db:"description_nb" json:"description_nb"`
	StrengthsEN   []string  `db:"strengths_en" json:"strengths_en"`
	StrengthsNO   []string  `db:"strengths_no" json:"strengths_no"`
	Pricing       string    `db:"pricing" json:"pricing"`
	PricingNB     string    `db:"pricing_nb" json:"pricing_nb"`
	Tags          []Tag     `json:"tags"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
