package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Client Tests
// =============================================================================

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(ClientConfig{BaseURL: "http://localhost:8080/"})

	if client.baseURL != "http://localhost:8080" {
		t.Errorf("baseURL = %s, want trailing slash trimmed", client.baseURL)
	}
	if client.target != "upstream" {
		t.Errorf("target = %s, want upstream", client.target)
	}
	if client.httpClient.Timeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", client.httpClient.Timeout)
	}
}

func TestClient_GetForwardsQueryAndHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/ultra/v1/order" {
			t.Errorf("Path = %s, want /ultra/v1/order", r.URL.Path)
		}
		if got := r.URL.Query().Get("amount"); got != "1000" {
			t.Errorf("amount = %s, want 1000", got)
		}
		if got := r.Header.Get("x-api-key"); got != "secret" {
			t.Errorf("x-api-key = %q, want secret", got)
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		Target:  "jupiter",
		BaseURL: server.URL,
		Headers: map[string]string{"x-api-key": "secret", "x-empty": ""},
	})

	body, err := client.Get(context.Background(), "/ultra/v1/order", url.Values{"amount": {"1000"}})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !strings.Contains(string(body), `"ok"`) {
		t.Errorf("body = %s, want status ok", body)
	}
}

func TestClient_PostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Method = %s, want POST", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %s, want application/json", r.Header.Get("Content-Type"))
		}

		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["key"] != "value" {
			t.Errorf("body[key] = %s, want value", body["key"])
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL})

	if _, err := client.PostJSON(context.Background(), "/test", map[string]string{"key": "value"}); err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
}

func TestClient_NonSuccessStatusReturnsUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{Target: "jupiter", BaseURL: server.URL})

	_, err := client.Get(context.Background(), "/tokens", nil)
	if err == nil {
		t.Fatal("Get() expected error")
	}

	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("error = %T, want *UpstreamError", err)
	}
	if upstreamErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", upstreamErr.StatusCode)
	}
	if !strings.Contains(upstreamErr.Error(), "rate limited") {
		t.Errorf("Error() = %s, want upstream body", upstreamErr.Error())
	}
}

func TestClient_TransportFailure(t *testing.T) {
	client := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})

	if _, err := client.Get(context.Background(), "/", nil); err == nil {
		t.Fatal("Get() expected transport error")
	}
}

// =============================================================================
// Body Limit Tests
// =============================================================================

func TestReadAllWithLimit(t *testing.T) {
	data, truncated, err := ReadAllWithLimit(strings.NewReader("abcdef"), 4)
	if err != nil {
		t.Fatalf("ReadAllWithLimit() error = %v", err)
	}
	if !truncated {
		t.Error("truncated = false, want true")
	}
	if string(data) != "abcd" {
		t.Errorf("data = %q, want abcd", data)
	}

	if _, err := ReadAllStrict(strings.NewReader("abcdef"), 4); err == nil {
		t.Error("ReadAllStrict() expected error for oversized body")
	}
	if data, err := ReadAllStrict(strings.NewReader("abc"), 4); err != nil || string(data) != "abc" {
		t.Errorf("ReadAllStrict() = %q, %v", data, err)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":               "",
		"Bearer abc":     "abc",
		"bearer  abc ":   "abc",
		"Basic abc":      "",
		"BearerNoSpace":  "",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if got := BearerToken(req); got != want {
			t.Errorf("BearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}
