package modelclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RefreshFunc re-establishes credentials for a vendor (e.g. an OAuth
// token refresh) and is retried exactly once on an AuthExpired error
// before the call itself is retried, per spec.md §4.5's error taxonomy
// row "AuthExpired: one refresh-then-retry; then re-consent if
// applicable." A vendor with no refresh hook registered simply fails the
// call on AuthExpired.
type RefreshFunc func(ctx context.Context) error

// Client is the navigation agent's single entry point to every vendor:
// it dispatches process_prompt-style calls to a registered Provider by
// vendor name, applies the retry policy from errors.go (grounded on
// internal/agent/providers/base.go's BaseProvider.Retry linear backoff),
// and accumulates usage metrics.
type Client struct {
	mu        sync.RWMutex
	providers map[string]Provider
	refreshers map[string]RefreshFunc

	retryDelay time.Duration
	metrics    *metricsSet
}

// NewClient builds an empty Client. reg may be nil to skip Prometheus
// registration (e.g. in tests).
func NewClient(reg prometheus.Registerer) *Client {
	return &Client{
		providers:  make(map[string]Provider),
		refreshers: make(map[string]RefreshFunc),
		retryDelay: time.Second,
		metrics:    newMetrics(reg),
	}
}

// Register wires a vendor's Provider (and optional credential refresher)
// into the client under p.Name().
func (c *Client) Register(p Provider, refresher RefreshFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[p.Name()] = p
	if refresher != nil {
		c.refreshers[p.Name()] = refresher
	}
}

// Complete runs one process_prompt-style call against the named vendor's
// Provider, retrying transient network/rate-limit errors once with a
// linear backoff and attempting one credential refresh on AuthExpired
// before a second attempt.
func (c *Client) Complete(ctx context.Context, vendor string, req Request) (Result, error) {
	c.mu.RLock()
	provider, ok := c.providers[vendor]
	refresher := c.refreshers[vendor]
	c.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("modelclient: no provider registered for vendor %q", vendor)
	}

	start := time.Now()
	result, err := provider.Complete(ctx, req)
	if err == nil {
		c.metrics.observe(vendor, "ok", time.Since(start).Seconds(), result.Usage)
		return result, nil
	}

	kind := errKind(err)
	switch {
	case kind == ErrAuthExpired && refresher != nil:
		if refreshErr := refresher(ctx); refreshErr == nil {
			result, err = provider.Complete(ctx, req)
		}
	case isRetryable(kind):
		select {
		case <-time.After(c.retryDelay):
		case <-ctx.Done():
			c.metrics.observe(vendor, "error", time.Since(start).Seconds(), Result{}.Usage)
			return Result{}, ctx.Err()
		}
		result, err = provider.Complete(ctx, req)
	}

	if err != nil {
		c.metrics.observe(vendor, "error", time.Since(start).Seconds(), Result{}.Usage)
		return Result{}, err
	}
	c.metrics.observe(vendor, "ok", time.Since(start).Seconds(), result.Usage)
	return result, nil
}

func errKind(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ErrVendor
}
