package modelclient

import (
	"context"
	"fmt"
	"testing"
)

type fakeProvider struct {
	name  string
	calls int
	plan  []func() (Result, error)
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(ctx context.Context, req Request) (Result, error) {
	i := f.calls
	f.calls++
	if i >= len(f.plan) {
		return f.plan[len(f.plan)-1]()
	}
	return f.plan[i]()
}

func TestClientCompleteRetriesTransientError(t *testing.T) {
	fp := &fakeProvider{
		name: "flaky",
		plan: []func() (Result, error){
			func() (Result, error) { return Result{}, classify(ErrTransientNetwork, fmt.Errorf("503")) },
			func() (Result, error) { return Result{Text: "ok"}, nil },
		},
	}
	c := NewClient(nil)
	c.retryDelay = 0
	c.Register(fp, nil)

	result, err := c.Complete(context.Background(), "flaky", Request{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if result.Text != "ok" {
		t.Errorf("Text = %q, want ok", result.Text)
	}
	if fp.calls != 2 {
		t.Errorf("calls = %d, want 2 (one retry)", fp.calls)
	}
}

func TestClientCompleteRefreshesOnAuthExpired(t *testing.T) {
	fp := &fakeProvider{
		name: "needs-refresh",
		plan: []func() (Result, error){
			func() (Result, error) { return Result{}, classify(ErrAuthExpired, fmt.Errorf("401")) },
			func() (Result, error) { return Result{Text: "refreshed"}, nil },
		},
	}
	refreshed := false
	c := NewClient(nil)
	c.Register(fp, func(ctx context.Context) error {
		refreshed = true
		return nil
	})

	result, err := c.Complete(context.Background(), "needs-refresh", Request{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !refreshed {
		t.Error("expected refresher to be called")
	}
	if result.Text != "refreshed" {
		t.Errorf("Text = %q, want refreshed", result.Text)
	}
}

func TestClientCompleteUnknownVendor(t *testing.T) {
	c := NewClient(nil)
	_, err := c.Complete(context.Background(), "nope", Request{})
	if err == nil {
		t.Fatal("expected error for unregistered vendor")
	}
}

func TestClientCompleteDoesNotRetryInvalidRequest(t *testing.T) {
	fp := &fakeProvider{
		name: "bad-request",
		plan: []func() (Result, error){
			func() (Result, error) { return Result{}, classify(ErrInvalidRequest, fmt.Errorf("400")) },
		},
	}
	c := NewClient(nil)
	c.Register(fp, nil)

	_, err := c.Complete(context.Background(), "bad-request", Request{})
	if err == nil {
		t.Fatal("expected error")
	}
	if fp.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry for InvalidRequest)", fp.calls)
	}
}
