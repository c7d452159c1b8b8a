package resolver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPEmbedderEmbedOneReturnsFirstVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("expected the api key to be forwarded, got %q", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{0.1, 0.2, 0.3}},
			},
		})
	}))
	defer server.Close()

	embedder, err := newHTTPEmbedder(server.URL, "test-key", "text-embed-v2", 0)
	if err != nil {
		t.Fatalf("newHTTPEmbedder: %v", err)
	}

	vector, err := embedder.embedOne(context.Background(), "find my booking")
	if err != nil {
		t.Fatalf("embedOne: %v", err)
	}
	if len(vector) != 3 || vector[0] != 0.1 {
		t.Fatalf("unexpected vector: %v", vector)
	}
}

func TestResolveEmbeddingsURLAppendsPath(t *testing.T) {
	cases := map[string]string{
		"https://api.example.com":            "https://api.example.com/v1/embeddings",
		"https://api.example.com/v1":         "https://api.example.com/v1/embeddings",
		"https://api.example.com/v1/embeddings": "https://api.example.com/v1/embeddings",
	}
	for in, want := range cases {
		if got := resolveEmbeddingsURL(in); got != want {
			t.Errorf("resolveEmbeddingsURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewPineconeResolverRequiresAPIKeyAndIndex(t *testing.T) {
	if _, err := NewPineconeResolver(PineconeConfig{Index: "site-facts"}); err == nil {
		t.Fatalf("expected an error with no api key")
	}
	if _, err := NewPineconeResolver(PineconeConfig{APIKey: "k"}); err == nil {
		t.Fatalf("expected an error with no index")
	}
}
