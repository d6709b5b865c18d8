package jupiter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/vault_gateway/internal/httputil"
)

const tokenListJSON = `[
  {"id":"So11111111111111111111111111111111111111112","symbol":"SOL","name":"Wrapped SOL","decimals":9,"icon":"https://img/sol.png","usdPrice":142.17,"isVerified":true,"tags":["verified","community"]},
  {"id":"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v","symbol":"USDC","name":"USD Coin","decimals":6,"tags":["verified"]},
  {"address":"mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So","symbol":"mSOL","name":"Marinade staked SOL","decimals":9,"logoURI":"https://img/msol.png"},
  {"symbol":"NOADDR","name":"dropped"}
]`

func TestParseTokens(t *testing.T) {
	tokens, err := ParseTokens([]byte(tokenListJSON))
	require.NoError(t, err)
	require.Len(t, tokens, 3)

	sol := tokens[0]
	assert.Equal(t, "So11111111111111111111111111111111111111112", sol.Address)
	assert.Equal(t, 9, sol.Decimals)
	assert.Equal(t, "https://img/sol.png", sol.LogoURI)
	assert.True(t, sol.Verified)
	require.NotNil(t, sol.Price)
	assert.Equal(t, "142.17", sol.Price.String())

	assert.True(t, tokens[1].Verified, "verified via tag")
	assert.Nil(t, tokens[1].Price)

	msol := tokens[2]
	assert.Equal(t, "mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So", msol.Address)
	assert.Equal(t, "https://img/msol.png", msol.LogoURI)
	assert.False(t, msol.Verified)
}

func TestParseTokens_WrappedAndInvalid(t *testing.T) {
	tokens, err := ParseTokens([]byte(`{"tokens":[{"id":"abc","symbol":"X"}]}`))
	require.NoError(t, err)
	assert.Len(t, tokens, 1)

	_, err = ParseTokens([]byte(`{"tokens":"nope"}`))
	assert.Error(t, err)

	_, err = ParseTokens([]byte(`not json`))
	assert.Error(t, err)
}

func TestClient_OrderForwardsQueryAndAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ultra/v1/order", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, "1000", r.URL.Query().Get("amount"))
		assert.Equal(t, "taker1", r.URL.Query().Get("taker"))
		_, _ = w.Write([]byte(`{"requestId":"req-1","transaction":"AAA"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "secret"})
	body, err := client.Order(context.Background(), url.Values{
		"inputMint":  {"a"},
		"outputMint": {"b"},
		"amount":     {"1000"},
		"taker":      {"taker1"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"requestId":"req-1","transaction":"AAA"}`, string(body))
}

func TestClient_ExecuteUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ultra/v1/execute", r.URL.Path)
		assert.Empty(t, r.Header.Get("x-api-key"))
		b, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"signedTransaction":"tx","requestId":"req-1"}`, string(b))
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"expired"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	_, err := client.Execute(context.Background(), ExecuteRequest{SignedTransaction: "tx", RequestID: "req-1"})
	require.Error(t, err)
	var upstreamErr *httputil.UpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	assert.Equal(t, http.StatusBadRequest, upstreamErr.StatusCode)
}

func TestClient_VerifiedTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tokens/v2/tag", r.URL.Path)
		assert.Equal(t, "verified", r.URL.Query().Get("query"))
		_, _ = w.Write([]byte(tokenListJSON))
	}))
	defer server.Close()

	tokens, err := NewClient(Config{BaseURL: server.URL}).VerifiedTokens(context.Background())
	require.NoError(t, err)
	assert.Len(t, tokens, 3)
}

func TestClient_Price(t *testing.T) {
	var gotIDs []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/price/v3", r.URL.Path)
		gotIDs = append(gotIDs, r.URL.Query().Get("ids"))
		_, _ = w.Write([]byte(`{"mintA":{"usdPrice":1.0001,"decimals":6},"mintB":{"decimals":9}}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	prices, err := client.Prices(context.Background(), []string{"mintA", "mintB"})
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, "1.0001", prices["mintA"].String())

	_, err = client.Price(context.Background(), "mintB")
	assert.Error(t, err)
	assert.Equal(t, []string{"mintA,mintB", "mintB"}, gotIDs)
}

func TestParsePrices_LegacyDataEnvelope(t *testing.T) {
	out := make(map[string]decimal.Decimal)
	err := parsePrices([]byte(`{"data":{"mintA":{"id":"mintA","price":"2.5"}}}`), out)
	require.NoError(t, err)
	assert.Equal(t, "2.5", out["mintA"].String())

	assert.Error(t, parsePrices([]byte(`{`), out))
}
