package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ConfiguredResolver is the stage-3 "externally-configured resolver" from
// spec.md §4.6: instantiated from a {target, params} config, it posts
// {text, context} to target and expects {value?} back, matching the
// same POST-a-JSON-envelope idiom internal/rtool's HTTP transport uses
// for remote tool calls (no teacher analogue for resolver delegation
// specifically, so the shape is borrowed from the nearest sibling
// concern in this module rather than invented from nothing).
type ConfiguredResolver struct {
	Target string
	Params map[string]any

	client *http.Client
}

// NewConfiguredResolver builds a resolver that POSTs to target. Params
// is included in every request body under the "params" key so the
// remote resolver can carry its own static configuration (an API key
// reference, a lookup table name, etc).
func NewConfiguredResolver(target string, params map[string]any) *ConfiguredResolver {
	return &ConfiguredResolver{
		Target: target,
		Params: params,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type configuredResolveRequest struct {
	Text    string         `json:"text"`
	Context Context        `json:"context"`
	Params  map[string]any `json:"params,omitempty"`
}

type configuredResolveResponse struct {
	Value string `json:"value"`
	Found bool   `json:"found"`
}

func (r *ConfiguredResolver) Resolve(ctx context.Context, text string, rctx Context) (string, bool, error) {
	if r.Target == "" {
		return "", false, nil
	}

	body, err := json.Marshal(configuredResolveRequest{Text: text, Context: rctx, Params: r.Params})
	if err != nil {
		return "", false, fmt.Errorf("resolver: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Target, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("resolver: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("resolver: configured resolver request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", false, fmt.Errorf("resolver: read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", false, fmt.Errorf("resolver: configured resolver status %d: %s", resp.StatusCode, raw)
	}

	var decoded configuredResolveResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", false, fmt.Errorf("resolver: decode response: %w", err)
	}
	if decoded.Value == "" {
		return "", false, nil
	}
	return decoded.Value, true, nil
}
