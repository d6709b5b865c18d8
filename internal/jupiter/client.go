// Package jupiter proxies swap and token-listing calls to the Jupiter aggregator.
package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/R3E-Network/vault_gateway/internal/httputil"
	"github.com/R3E-Network/vault_gateway/internal/tokenstore"
)

const (
	DefaultBaseURL = "https://lite-api.jup.ag"
	DefaultTimeout = 15 * time.Second

	orderPath   = "/ultra/v1/order"
	executePath = "/ultra/v1/execute"
	tokensPath  = "/tokens/v2/tag"
	pricePath   = "/price/v3"
	verifiedTag = "verified"
	maxPriceIDs = 50
)

// Token is the normalized token listing entry.
type Token = tokenstore.Token

// ExecuteRequest is the body of an Ultra execute call.
type ExecuteRequest struct {
	SignedTransaction string `json:"signedTransaction"`
	RequestID         string `json:"requestId"`
}

// Config configures the aggregator client.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client calls the aggregator REST API. It holds no state besides the
// underlying HTTP client.
type Client struct {
	http *httputil.Client
}

// NewClient creates an aggregator client.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http: httputil.NewClient(httputil.ClientConfig{
			Target:     "jupiter",
			BaseURL:    baseURL,
			Timeout:    timeout,
			HTTPClient: cfg.HTTPClient,
			Headers:    map[string]string{"x-api-key": cfg.APIKey},
		}),
	}
}

// Order requests a swap order. The upstream body is returned verbatim.
func (c *Client) Order(ctx context.Context, params url.Values) (json.RawMessage, error) {
	return c.http.Get(ctx, orderPath, params)
}

// Execute submits a signed swap transaction. The upstream body is returned verbatim.
func (c *Client) Execute(ctx context.Context, req ExecuteRequest) (json.RawMessage, error) {
	return c.http.PostJSON(ctx, executePath, req)
}

// VerifiedTokens fetches and normalizes the verified token list.
func (c *Client) VerifiedTokens(ctx context.Context) ([]Token, error) {
	body, err := c.http.Get(ctx, tokensPath, url.Values{"query": {verifiedTag}})
	if err != nil {
		return nil, err
	}
	return ParseTokens(body)
}

// Prices returns USD prices keyed by mint. Mints without a price are omitted.
func (c *Client) Prices(ctx context.Context, mints []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(mints))
	for start := 0; start < len(mints); start += maxPriceIDs {
		end := start + maxPriceIDs
		if end > len(mints) {
			end = len(mints)
		}
		body, err := c.http.Get(ctx, pricePath, url.Values{"ids": {strings.Join(mints[start:end], ",")}})
		if err != nil {
			return nil, err
		}
		if err := parsePrices(body, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Price returns the USD price of a single mint.
func (c *Client) Price(ctx context.Context, mint string) (decimal.Decimal, error) {
	prices, err := c.Prices(ctx, []string{mint})
	if err != nil {
		return decimal.Zero, err
	}
	p, ok := prices[mint]
	if !ok {
		return decimal.Zero, fmt.Errorf("no price for %s", mint)
	}
	return p, nil
}

// ParseTokens normalizes an aggregator token payload. Both a bare array and
// an object with a "tokens" array are accepted.
func ParseTokens(body []byte) ([]Token, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid token list json")
	}
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		root = root.Get("tokens")
		if !root.IsArray() {
			return nil, fmt.Errorf("token list is not an array")
		}
	}

	items := root.Array()
	tokens := make([]Token, 0, len(items))
	for _, item := range items {
		address := firstString(item, "id", "address", "mint")
		if address == "" {
			continue
		}
		tok := Token{
			Address:  address,
			Symbol:   item.Get("symbol").String(),
			Name:     item.Get("name").String(),
			Decimals: int(item.Get("decimals").Int()),
			LogoURI:  firstString(item, "icon", "logoURI"),
		}
		for _, tag := range item.Get("tags").Array() {
			tok.Tags = append(tok.Tags, tag.String())
		}
		tok.Verified = item.Get("isVerified").Bool() || hasTag(tok.Tags, verifiedTag)
		if p := item.Get("usdPrice"); p.Exists() && p.Type == gjson.Number {
			if d, err := decimal.NewFromString(p.Raw); err == nil {
				tok.Price = &d
			}
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

func parsePrices(body []byte, out map[string]decimal.Decimal) error {
	if !gjson.ValidBytes(body) {
		return fmt.Errorf("invalid price json")
	}
	root := gjson.ParseBytes(body)
	// Older responses nest entries under "data".
	if data := root.Get("data"); data.IsObject() {
		root = data
	}
	root.ForEach(func(key, value gjson.Result) bool {
		p := value.Get("usdPrice")
		if !p.Exists() {
			p = value.Get("price")
		}
		if !p.Exists() {
			return true
		}
		raw := p.Raw
		if p.Type == gjson.String {
			raw = p.String()
		}
		if d, err := decimal.NewFromString(raw); err == nil {
			out[key.String()] = d
		}
		return true
	})
	return nil
}

func firstString(item gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := item.Get(k).String(); v != "" {
			return v
		}
	}
	return ""
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
