package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pinecone-io/go-pinecone/pinecone"
)

// PineconeConfig configures a PineconeResolver. Fields mirror the
// original agent's managed-embedding resolver (index, embedding model,
// namespace, score threshold, top K), with EmbeddingsBaseURL/APIKey
// added because the pinned go-pinecone client only exposes
// QueryByVectorValues: there is no confirmed managed-embedding
// text-search call on this client, so a query vector has to be
// produced client-side before Pinecone ever sees it.
type PineconeConfig struct {
	APIKey         string
	Index          string
	Namespace      string
	EmbedModel     string
	ScoreThreshold *float64
	TopK           int

	// EmbeddingsBaseURL/EmbeddingsAPIKey point at an OpenAI-compatible
	// /v1/embeddings endpoint, the same shape the teacher's memory
	// search tool already speaks to.
	EmbeddingsBaseURL string
	EmbeddingsAPIKey  string
	Timeout           time.Duration
}

// PineconeResolver resolves a ResolveValue placeholder by embedding the
// placeholder text, searching a Pinecone index for its nearest stored
// chunks, and returning the best hit's value field, gated by a minimum
// score. Grounded on the original navigation agent's
// PineconeManagedEmbedResolver: same field extraction order
// (value -> chunk_text -> label), same score-threshold gate, same
// "no hits means unresolved, not an error" contract.
type PineconeResolver struct {
	cfg      PineconeConfig
	client   *pinecone.Client
	embedder *httpEmbedder
}

// NewPineconeResolver opens a Pinecone client and an embeddings HTTP
// client for cfg. It does not call Pinecone until Resolve is first
// invoked — DescribeIndex is cheap but there is no reason to pay for it
// at construction time.
func NewPineconeResolver(cfg PineconeConfig) (*PineconeResolver, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("resolver: pinecone api key is required")
	}
	if strings.TrimSpace(cfg.Index) == "" {
		return nil, fmt.Errorf("resolver: pinecone index is required")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("resolver: create pinecone client: %w", err)
	}

	embedder, err := newHTTPEmbedder(cfg.EmbeddingsBaseURL, cfg.EmbeddingsAPIKey, cfg.EmbedModel, cfg.Timeout)
	if err != nil {
		return nil, err
	}

	return &PineconeResolver{cfg: cfg, client: client, embedder: embedder}, nil
}

// Resolve satisfies resolver.Resolver. An empty placeholder or a
// below-threshold/no-hit search both resolve to ok=false rather than an
// error, matching the original's "not resolved" contract.
func (r *PineconeResolver) Resolve(ctx context.Context, text string, rctx Context) (string, bool, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		return "", false, nil
	}

	vector, err := r.embedder.embedOne(ctx, query)
	if err != nil {
		return "", false, fmt.Errorf("resolver: embed query: %w", err)
	}

	index, err := r.client.DescribeIndex(ctx, r.cfg.Index)
	if err != nil {
		return "", false, fmt.Errorf("resolver: describe index %s: %w", r.cfg.Index, err)
	}
	indexConn, err := r.client.Index(pinecone.NewIndexConnParams{
		Host:      index.Host,
		Namespace: r.cfg.Namespace,
	})
	if err != nil {
		return "", false, fmt.Errorf("resolver: connect to index %s: %w", r.cfg.Index, err)
	}
	defer indexConn.Close()

	resp, err := indexConn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(r.cfg.TopK),
		IncludeMetadata: true,
	})
	if err != nil {
		return "", false, fmt.Errorf("resolver: query pinecone: %w", err)
	}
	if len(resp.Matches) == 0 {
		return "", false, nil
	}

	best := resp.Matches[0]
	for _, match := range resp.Matches[1:] {
		if match.Score > best.Score {
			best = match
		}
	}

	if r.cfg.ScoreThreshold != nil && float64(best.Score) < *r.cfg.ScoreThreshold {
		return "", false, nil
	}
	if best.Vector == nil || best.Vector.Metadata == nil {
		return "", false, nil
	}

	fields := best.Vector.Metadata.AsMap()
	for _, key := range []string{"value", "chunk_text", "label"} {
		if raw, ok := fields[key]; ok {
			if s, ok := raw.(string); ok && strings.TrimSpace(s) != "" {
				return s, true, nil
			}
		}
	}
	return "", false, nil
}

// httpEmbedder calls an OpenAI-compatible /v1/embeddings endpoint,
// adapted from the teacher's memorysearch.remoteEmbedder down to the
// single-input case a resolver needs (no cache, no batching: one
// placeholder resolved at a time).
type httpEmbedder struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

func newHTTPEmbedder(baseURL, apiKey, model string, timeout time.Duration) (*httpEmbedder, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("resolver: pinecone resolver needs an embeddings base url")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("resolver: pinecone resolver needs an embedding model")
	}
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &httpEmbedder{
		url:    resolveEmbeddingsURL(baseURL),
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (e *httpEmbedder) embedOne(ctx context.Context, input string) ([]float32, error) {
	payload := struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}{Model: e.model, Input: []string{input}}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return nil, fmt.Errorf("embeddings request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("embeddings response had no data")
	}
	return parsed.Data[0].Embedding, nil
}

func resolveEmbeddingsURL(base string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(base), "/")
	lower := strings.ToLower(trimmed)
	if strings.HasSuffix(lower, "/embeddings") {
		return trimmed
	}
	if strings.HasSuffix(lower, "/v1") {
		return trimmed + "/embeddings"
	}
	return trimmed + "/v1/embeddings"
}
