package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/parse"
)

// RateSource returns how many units of from are worth one unit of to on the
// given date (for USD→EUR, the USD/EUR quote).
type RateSource interface {
	Rate(ctx context.Context, from, to, date string) (float64, error)
}

// HTTPOracle queries a Frankfurter-compatible ECB reference rate API.
type HTTPOracle struct {
	baseURL string
	client  *http.Client
}

// NewHTTPOracle creates an oracle rooted at baseURL (e.g. https://api.frankfurter.app).
func NewHTTPOracle(baseURL string, timeout time.Duration) *HTTPOracle {
	return &HTTPOracle{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type frankfurterResponse struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// Rate implements RateSource. date is DD/MM/YYYY; an empty date asks for the latest rate.
func (o *HTTPOracle) Rate(ctx context.Context, from, to, date string) (float64, error) {
	const op = "HTTPOracle.Rate"

	day := "latest"
	if date != "" {
		t, err := parse.DateTime(date)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		day = t.Format("2006-01-02")
	}

	url := fmt.Sprintf("%s/%s?from=%s&to=%s", o.baseURL, day, strings.ToUpper(to), strings.ToUpper(from))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}

	var body frankfurterResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("%s: failed to decode response: %w", op, err)
	}

	rate, ok := body.Rates[strings.ToUpper(from)]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("%s: no %s rate in response", op, from)
	}
	return rate, nil
}
