// Package modelclient sends a turn's prompt (system + history + optional
// screenshot) to a vendor model and returns a uniform Result, hiding each
// vendor SDK's own request/response and streaming shape behind one
// synchronous call. It also supports a signed proxy transport for
// deployments that route model traffic through a central gateway instead
// of calling vendor APIs directly.
package modelclient

import (
	"context"
	"fmt"

	"github.com/haasonsaas/surfari-go/internal/toolfabric"
	"github.com/haasonsaas/surfari-go/pkg/models"
)

// Request is one process_prompt call: a system prompt, the running
// history, the tool declarations currently in scope, and bookkeeping
// fields (Purpose, SiteID) used only for usage attribution and logging.
type Request struct {
	System  string
	History []models.ChatMessage
	Image   []byte // optional screenshot, PNG bytes
	Tools   []toolfabric.Declaration
	Model   string
	Purpose string
	SiteID  string

	MaxTokens int
}

// Result is a model turn's outcome: free-form text (a model answering
// directly, or emitting the JSON the navigation loop expects to parse
// into models.LLMResponse) and/or a list of tool calls, as the vendor
// returned them; both can be set on the same Result.
type Result struct {
	Text      string
	ToolCalls []models.ToolCall
	Usage     models.TokenUsage
}

// Provider is one vendor's synchronous completion endpoint. Every
// adapter in this package converts Request/Result on the outside and
// speaks its own SDK on the inside.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (Result, error)
}

// ErrorKind classifies a Provider error for the retry policy in Client.
type ErrorKind string

const (
	ErrTransientNetwork ErrorKind = "TransientNetwork"
	ErrAuthExpired      ErrorKind = "AuthExpired"
	ErrRateLimited      ErrorKind = "RateLimited"
	ErrInvalidRequest   ErrorKind = "InvalidRequest"
	ErrVendor           ErrorKind = "Vendor"
)

// ProviderError wraps a vendor error with the kind the retry policy needs.
type ProviderError struct {
	Kind ErrorKind
	Err  error
}

func (e *ProviderError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Err) }
func (e *ProviderError) Unwrap() error { return e.Err }

func classify(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Kind: kind, Err: err}
}
