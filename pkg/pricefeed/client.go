// Package pricefeed reads spot crypto prices from a CoinGecko-compatible API.
package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

var ErrUnavailable = errors.New("price feed unavailable")

// Pair names a coin id and the currency it is quoted in, e.g. bitcoin/inr.
type Pair struct {
	Coin     string
	Currency string
}

var BitcoinINR = Pair{Coin: "bitcoin", Currency: "inr"}

func (p Pair) String() string {
	return strings.ToUpper(p.Coin + "/" + p.Currency)
}

type Quote struct {
	Pair      string          `json:"pair"`
	Price     decimal.Decimal `json:"price"`
	FetchedAt time.Time       `json:"fetched_at"`
}

type Client struct {
	BaseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// SpotPrice fetches the current price of pair. Any transport or decoding
// failure is reported as ErrUnavailable.
func (c *Client) SpotPrice(ctx context.Context, pair Pair) (Quote, error) {
	q := url.Values{}
	q.Set("ids", pair.Coin)
	q.Set("vs_currencies", pair.Currency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	res := gjson.GetBytes(body, pair.Coin+"."+pair.Currency)
	if !res.Exists() || res.Type != gjson.Number {
		return Quote{}, fmt.Errorf("%w: no %s in response", ErrUnavailable, pair)
	}
	price, err := decimal.NewFromString(res.Raw)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return Quote{Pair: pair.String(), Price: price, FetchedAt: time.Now().UTC()}, nil
}
