package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nxfs_api/internal/logger"

	gobreaker "github.com/sony/gobreaker/v2"
)

const DefaultKartverketURL = "https://ws.geonorge.no/adresser/v1/sok"

// KartverketClient queries the Geonorge address search API.
type KartverketClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*Result]
}

// NewKartverketClient creates a client. An empty baseURL uses the public endpoint.
func NewKartverketClient(baseURL string, timeout time.Duration) *KartverketClient {
	if baseURL == "" {
		baseURL = DefaultKartverketURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "kartverket",
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoMatch) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("geocoder circuit state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &KartverketClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: gobreaker.NewCircuitBreaker[*Result](settings),
	}
}

type searchResponse struct {
	Adresser []struct {
		Representasjonspunkt *struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"representasjonspunkt"`
	} `json:"adresser"`
}

// Geocode resolves addr to the first matching address point.
func (c *KartverketClient) Geocode(ctx context.Context, addr Address) (*Result, error) {
	if addr.Empty() {
		return nil, ErrEmptyAddress
	}

	res, err := c.breaker.Execute(func() (*Result, error) {
		return c.lookup(ctx, addr)
	})
	switch {
	case err == nil:
		Requests.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrNoMatch):
		Requests.WithLabelValues("no_match").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		Requests.WithLabelValues("breaker_open").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		Requests.WithLabelValues("error").Inc()
	}
	return res, err
}

func (c *KartverketClient) lookup(ctx context.Context, addr Address) (*Result, error) {
	params := url.Values{}
	params.Set("treffPerSide", "1")
	if addr.Structured() {
		params.Set("adressetekst", strings.TrimSpace(addr.Street))
		if pc := strings.TrimSpace(addr.PostalCode); pc != "" {
			params.Set("postnummer", pc)
		}
		if city := strings.TrimSpace(addr.City); city != "" {
			params.Set("poststed", city)
		}
	} else {
		params.Set("sok", strings.TrimSpace(addr.Street))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("geocode API error: %s - %s", resp.Status, string(body))
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode geocode response: %w", err)
	}
	if len(sr.Adresser) == 0 || sr.Adresser[0].Representasjonspunkt == nil {
		return nil, ErrNoMatch
	}

	p := sr.Adresser[0].Representasjonspunkt
	return &Result{Lat: p.Lat, Lon: p.Lon, Accuracy: "exact"}, nil
}
