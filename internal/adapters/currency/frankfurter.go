package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/manthysbr/travelagent/internal/core/domain"
	"github.com/manthysbr/travelagent/internal/core/ports"
)

const providerName = "frankfurter"

// FrankfurterClient queries the ECB reference rates published by
// api.frankfurter.app.
type FrankfurterClient struct {
	client  *http.Client
	baseURL string
}

var _ ports.RateSource = (*FrankfurterClient)(nil)

func NewFrankfurterClient(baseURL string, timeout time.Duration) *FrankfurterClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FrankfurterClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type latestResponse struct {
	Amount float64            `json:"amount"`
	Base   string             `json:"base"`
	Date   string             `json:"date"`
	Rates  map[string]float64 `json:"rates"`
}

// Convert calls GET /latest?amount=&from=&to=. Transport failures, non-200
// statuses and responses without the requested rate fail with ErrUpstream.
func (c *FrankfurterClient) Convert(ctx context.Context, amount float64, from, to string) (ports.Rate, error) {
	q := url.Values{}
	q.Set("amount", strconv.FormatFloat(amount, 'f', -1, 64))
	q.Set("from", from)
	q.Set("to", to)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/latest?"+q.Encode(), nil)
	if err != nil {
		return ports.Rate{}, fmt.Errorf("%w: build request: %v", domain.ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return ports.Rate{}, fmt.Errorf("%w: %s unreachable: %v", domain.ErrUpstream, providerName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return ports.Rate{}, fmt.Errorf("%w: read response: %v", domain.ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		return ports.Rate{}, fmt.Errorf("%w: %s returned status %d: %s", domain.ErrUpstream, providerName, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out latestResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return ports.Rate{}, fmt.Errorf("%w: decode response: %v", domain.ErrUpstream, err)
	}
	value, ok := out.Rates[to]
	if !ok {
		return ports.Rate{}, fmt.Errorf("%w: %s returned no rate for %s", domain.ErrUpstream, providerName, to)
	}

	return ports.Rate{
		Amount:   amount,
		From:     from,
		To:       to,
		Value:    value,
		Date:     out.Date,
		Provider: providerName,
	}, nil
}
