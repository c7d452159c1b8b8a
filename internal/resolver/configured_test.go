package resolver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConfiguredResolverSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req configuredResolveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Text != "ShippingAddress" {
			t.Fatalf("unexpected text: %q", req.Text)
		}
		if req.Context.CurrentURL != "https://example.com/checkout" {
			t.Fatalf("unexpected context: %+v", req.Context)
		}
		json.NewEncoder(w).Encode(configuredResolveResponse{Value: "42 Main St", Found: true})
	}))
	defer server.Close()

	resolver := NewConfiguredResolver(server.URL, map[string]any{"table": "addresses"})
	value, ok, err := resolver.Resolve(context.Background(), "ShippingAddress", Context{CurrentURL: "https://example.com/checkout"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !ok || value != "42 Main St" {
		t.Fatalf("expected resolved value, got ok=%v value=%q", ok, value)
	}
}

func TestConfiguredResolverNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(configuredResolveResponse{Found: false})
	}))
	defer server.Close()

	resolver := NewConfiguredResolver(server.URL, nil)
	_, ok, err := resolver.Resolve(context.Background(), "ShippingAddress", Context{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ok {
		t.Fatalf("expected not-found to report ok=false")
	}
}

func TestConfiguredResolverErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	resolver := NewConfiguredResolver(server.URL, nil)
	_, _, err := resolver.Resolve(context.Background(), "ShippingAddress", Context{})
	if err == nil {
		t.Fatalf("expected error status to surface as an error")
	}
}

func TestConfiguredResolverNoTargetFallsThrough(t *testing.T) {
	resolver := NewConfiguredResolver("", nil)
	_, ok, err := resolver.Resolve(context.Background(), "ShippingAddress", Context{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ok {
		t.Fatalf("expected empty target to fall through")
	}
}
