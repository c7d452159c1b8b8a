package rtool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/haasonsaas/surfari-go/internal/toolfabric"
)

// Session is one connected Remote Tool Session: a transport (or the
// in-process embedded filesystem server) plus its cached capabilities.
// Capabilities are fetched once at connect and only re-fetched on an
// explicit Refresh.
type Session struct {
	cfg       ServerConfig
	transport Transport
	embedded  *embeddedFS

	mu        sync.RWMutex
	tools     []ToolDecl
	resources []ResourceDecl
}

// Connect opens a session for cfg, choosing the embedded filesystem
// server, a pipe transport, or an HTTP transport per cfg.Kind(), then
// caches its advertised tools and resources.
func Connect(ctx context.Context, cfg ServerConfig) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{cfg: cfg}
	if cfg.Kind() == TransportEmbedded {
		s.embedded = newEmbeddedFS(cfg.Root)
		s.tools = s.embedded.declarations()
		return s, nil
	}

	s.transport = NewTransport(cfg)
	if err := s.transport.Connect(ctx); err != nil {
		return nil, fmt.Errorf("rtool: connect %q: %w", cfg.Name, err)
	}
	if err := s.Refresh(ctx); err != nil {
		s.transport.Close()
		return nil, err
	}
	return s, nil
}

// Refresh re-fetches tools and resources from the remote server. A no-op
// for embedded sessions, whose capabilities never change at runtime.
func (s *Session) Refresh(ctx context.Context) error {
	if s.embedded != nil {
		return nil
	}

	rawTools, err := s.transport.Call(ctx, "tools/list", nil)
	if err != nil {
		return fmt.Errorf("rtool: list_tools: %w", err)
	}
	var toolsResp struct {
		Tools []ToolDecl `json:"tools"`
	}
	if err := json.Unmarshal(rawTools, &toolsResp); err != nil {
		return fmt.Errorf("rtool: decode tools/list: %w", err)
	}

	rawResources, err := s.transport.Call(ctx, "resources/list", nil)
	var resourcesResp struct {
		Resources []ResourceDecl `json:"resources"`
	}
	if err == nil {
		_ = json.Unmarshal(rawResources, &resourcesResp)
	}

	s.mu.Lock()
	s.tools = toolsResp.Tools
	s.resources = resourcesResp.Resources
	s.mu.Unlock()
	return nil
}

// ListTools returns the cached tool declarations mapped into the fabric's
// Declaration shape, satisfying toolfabric.RemoteSession so a Session can
// be handed straight to Fabric.RegisterRemote.
func (s *Session) ListTools(ctx context.Context) ([]toolfabric.Declaration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]toolfabric.Declaration, len(s.tools))
	for i, t := range s.tools {
		out[i] = toolfabric.Declaration{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
	}
	return out, nil
}

// ListResources returns the cached resource declarations.
func (s *Session) ListResources() []ResourceDecl {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ResourceDecl, len(s.resources))
	copy(out, s.resources)
	return out
}

// ReadResource fetches one resource's contents by URI.
func (s *Session) ReadResource(ctx context.Context, uri string) (any, error) {
	if s.embedded != nil {
		return nil, fmt.Errorf("Unsupported: embedded filesystem server has no resources")
	}
	raw, err := s.transport.Call(ctx, "resources/read", map[string]any{"uri": uri})
	if err != nil {
		return nil, fmt.Errorf("rtool: read_resource %q: %w", uri, err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("rtool: decode resource %q: %w", uri, err)
	}
	return decoded, nil
}

// CallTool invokes name with args and returns its data on success,
// satisfying toolfabric.RemoteSession. A call that the server itself
// reports as failed surfaces as a Go error rather than a successful
// result carrying an error string, since the fabric's own Execute is
// what turns either outcome into a models.ToolResult.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any, timeout time.Duration) (any, error) {
	result, err := s.CallToolResult(ctx, name, args, timeout)
	if err != nil {
		return nil, err
	}
	if !result.OK {
		return nil, fmt.Errorf("%s", result.Error)
	}
	return result.Data, nil
}

// CallToolResult is CallTool's richer form, returning the full
// {ok,data,error,elapsed_ms} shape spec.md §4.4 names for callers (the
// navigation loop's own logging/accounting) that want the timing and
// success discriminant directly instead of as a Go error.
func (s *Session) CallToolResult(ctx context.Context, name string, args map[string]any, timeout time.Duration) (*CallResult, error) {
	start := time.Now()
	if timeout <= 0 {
		timeout = s.cfg.Timeout
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if s.embedded != nil {
		data, err := s.embedded.callTool(name, args)
		elapsed := time.Since(start).Milliseconds()
		if err != nil {
			return &CallResult{OK: false, Error: err.Error(), ElapsedMS: elapsed}, nil
		}
		return &CallResult{OK: true, Data: data, ElapsedMS: elapsed}, nil
	}

	raw, err := s.transport.Call(callCtx, "tools/call", map[string]any{"name": name, "arguments": args})
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return &CallResult{OK: false, Error: err.Error(), ElapsedMS: elapsed}, nil
	}

	var envelope struct {
		Data  json.RawMessage `json:"data"`
		Error string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		// server returned a bare result with no {data,error} envelope
		var bare any
		_ = json.Unmarshal(raw, &bare)
		return &CallResult{OK: true, Data: bare, ElapsedMS: elapsed}, nil
	}
	if envelope.Error != "" {
		return &CallResult{OK: false, Error: envelope.Error, ElapsedMS: elapsed}, nil
	}
	if len(envelope.Data) > 0 {
		var data any
		_ = json.Unmarshal(envelope.Data, &data)
		return &CallResult{OK: true, Data: data, ElapsedMS: elapsed}, nil
	}
	var bare any
	_ = json.Unmarshal(raw, &bare)
	return &CallResult{OK: true, Data: bare, ElapsedMS: elapsed}, nil
}

// Close releases the underlying transport. A no-op for embedded sessions.
func (s *Session) Close() error {
	if s.transport != nil {
		return s.transport.Close()
	}
	return nil
}
