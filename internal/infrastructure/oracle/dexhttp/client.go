package dexhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tokentrader/internal/application/port"
)

// Client is a pull oracle over a DEX aggregator REST API. One request per
// token; the aggregator returns every trading pair for the token and the
// most liquid pair's quote wins.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Name() string { return "dexhttp" }

type pairPayload struct {
	BaseToken struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUSD  string `json:"priceUsd"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
}

type tokenPayload struct {
	Pairs []pairPayload `json:"pairs"`
}

func (c *Client) Price(ctx context.Context, address string) (port.Quote, error) {
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return port.Quote{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return port.Quote{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return port.Quote{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return port.Quote{}, fmt.Errorf("oracle http %d: %s", resp.StatusCode, string(body))
	}

	var payload tokenPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return port.Quote{}, fmt.Errorf("oracle decode: %w", err)
	}
	if len(payload.Pairs) == 0 {
		return port.Quote{}, fmt.Errorf("oracle: no pairs for %s", address)
	}

	best := payload.Pairs[0]
	for _, p := range payload.Pairs[1:] {
		if p.Liquidity.USD > best.Liquidity.USD {
			best = p
		}
	}

	price, err := strconv.ParseFloat(best.PriceUSD, 64)
	if err != nil || price <= 0 {
		return port.Quote{}, fmt.Errorf("oracle: bad price %q for %s", best.PriceUSD, address)
	}

	return port.Quote{
		Address:  address,
		Symbol:   best.BaseToken.Symbol,
		PriceUSD: price,
		Ts:       time.Now().UnixMilli(),
	}, nil
}

var _ port.PriceOracle = (*Client)(nil)
