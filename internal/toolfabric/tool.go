// Package toolfabric implements the Tool Fabric (C3): it normalizes local
// and remote tool declarations into one callable surface, coerces
// whatever argument shape a model hands back into the callable's
// signature, and executes tool calls serially or concurrently with
// per-call timeouts.
package toolfabric

import (
	"context"
	"encoding/json"
	"time"
)

// Declaration is what a tool publishes to a Model Client: name,
// human-readable description, and its parameters as a flattened JSON
// schema (no $ref/$defs, so every vendor's function-calling API can
// consume it directly).
type Declaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Tool is one callable the fabric can dispatch to, whether introspected
// from a local Go function or proxied through a Remote Tool Session.
type Tool interface {
	Declaration() Declaration
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// RemoteSession is the slice of internal/rtool's Remote Tool Session the
// fabric needs to import and proxy remote tools. Defined locally so this
// package never imports internal/rtool.
type RemoteSession interface {
	ListTools(ctx context.Context) ([]Declaration, error)
	CallTool(ctx context.Context, name string, args map[string]any, timeout time.Duration) (any, error)
}
