package tavily

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearch(t *testing.T) {
	t.Parallel()

	var got SearchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %s, want /search", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tvly-test" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"query":"reset apple id","results":[{"title":"Reset your Apple ID password","url":"https://support.apple.com/102656","content":"Use iforgot.apple.com","score":0.9}]}`)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "tvly-test", MaxResults: 3})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	results, err := client.Search(context.Background(), "  reset apple id ", []string{"support.apple.com"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Title != "Reset your Apple ID password" {
		t.Fatalf("unexpected results: %#v", results)
	}
	if got.Query != "reset apple id" {
		t.Fatalf("query = %q", got.Query)
	}
	if got.MaxResults != 3 {
		t.Fatalf("max_results = %d", got.MaxResults)
	}
	if len(got.IncludeDomains) != 1 || got.IncludeDomains[0] != "support.apple.com" {
		t.Fatalf("include_domains = %#v", got.IncludeDomains)
	}
}

func TestSearchStatusError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"detail":{"error":"quota exceeded"}}`)
	}))
	t.Cleanup(server.Close)

	client := MustNew(Config{BaseURL: server.URL, APIKey: "tvly-test"})
	_, err := client.Search(context.Background(), "macbook price", nil)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Message != "quota exceeded" {
		t.Fatalf("message = %q", statusErr.Message)
	}
	if !statusErr.Temporary() {
		t.Fatal("429 should be temporary")
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	t.Parallel()

	client := MustNew(Config{APIKey: "tvly-test"})
	if _, err := client.Search(context.Background(), "   ", nil); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error without api key")
	}
}
