package geo

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrEmptyAddress = errors.New("geo: empty address")
	ErrNoMatch      = errors.New("geo: address not found")
	ErrUnavailable  = errors.New("geo: geocoding service unavailable")
)

// Address is a Norwegian street address. PostalCode and City are optional;
// when either is present the lookup is structured instead of free text.
type Address struct {
	Street     string
	PostalCode string
	City       string
}

func (a Address) Empty() bool {
	return strings.TrimSpace(a.Street) == ""
}

func (a Address) Structured() bool {
	return strings.TrimSpace(a.PostalCode) != "" || strings.TrimSpace(a.City) != ""
}

func (a Address) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.Street, a.PostalCode, a.City} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// CacheKey is "geocode_" plus the lower-cased address with spaces and
// colons replaced, so it is safe as a Redis key segment.
func (a Address) CacheKey() string {
	norm := strings.ToLower(strings.TrimSpace(a.String()))
	norm = strings.NewReplacer(" ", "_", ":", "_").Replace(norm)
	return "geocode_" + norm
}

// Result is a resolved coordinate.
type Result struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Accuracy string  `json:"accuracy"`
}

// Geocoder resolves an address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, addr Address) (*Result, error)
}
