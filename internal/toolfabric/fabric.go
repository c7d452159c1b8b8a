package toolfabric

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/haasonsaas/surfari-go/pkg/models"
)

// Fabric is a thread-safe, name-keyed set of registered tools. Later
// registrations of the same name win, matching how a navigation task can
// layer site-specific remote tools over generic local ones.
type Fabric struct {
	mu    sync.RWMutex
	tools map[string]Tool

	// StrictTypes disables the "safe scalar coercion" pass (string
	// "true"/"false"/numeric-looking strings promoted to bool/number)
	// for every local tool registered on this fabric.
	StrictTypes bool
}

// New returns an empty Fabric.
func New() *Fabric {
	return &Fabric{tools: make(map[string]Tool)}
}

func (f *Fabric) register(tool Tool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tools[tool.Declaration().Name] = tool
}

// RegisterRemote imports every tool a Remote Tool Session advertises and
// wraps each as a local callable that proxies invocation via the session.
func (f *Fabric) RegisterRemote(ctx context.Context, session RemoteSession) error {
	decls, err := session.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("toolfabric: list remote tools: %w", err)
	}
	for _, decl := range decls {
		f.register(&remoteTool{decl: decl, session: session})
	}
	return nil
}

// Get returns a registered tool by name.
func (f *Fabric) Get(name string) (Tool, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.tools[name]
	return t, ok
}

// Declarations returns every registered tool's declaration, for handing
// to a Model Client as the available function-calling surface.
func (f *Fabric) Declarations() []Declaration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Declaration, 0, len(f.tools))
	for _, t := range f.tools {
		out = append(out, t.Declaration())
	}
	return out
}

type remoteTool struct {
	decl    Declaration
	session RemoteSession
}

func (t *remoteTool) Declaration() Declaration { return t.decl }

func (t *remoteTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return t.session.CallTool(ctx, t.decl.Name, args, 0)
}

// ExecuteOptions configures one Execute call.
type ExecuteOptions struct {
	// Timeout bounds each individual tool call; the default is 30s.
	Timeout time.Duration
	// Parallel runs every call concurrently when true and there is more
	// than one call; otherwise calls run serially in input order.
	Parallel bool
}

func (o ExecuteOptions) withDefaults() ExecuteOptions {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	return o
}

// Execute locates each call's callable by name, invokes it under a
// per-call timeout, and returns results in the same order as the input,
// regardless of completion order under parallel execution.
func (f *Fabric) Execute(ctx context.Context, calls []models.ToolCall, opts ExecuteOptions) []models.ToolResult {
	opts = opts.withDefaults()
	results := make([]models.ToolResult, len(calls))

	if opts.Parallel && len(calls) > 1 {
		var wg sync.WaitGroup
		for i, call := range calls {
			wg.Add(1)
			go func(idx int, tc models.ToolCall) {
				defer wg.Done()
				results[idx] = f.invokeOne(ctx, tc, opts.Timeout)
			}(i, call)
		}
		wg.Wait()
		return results
	}

	for i, call := range calls {
		results[i] = f.invokeOne(ctx, call, opts.Timeout)
	}
	return results
}

func (f *Fabric) invokeOne(ctx context.Context, call models.ToolCall, timeout time.Duration) models.ToolResult {
	start := time.Now()
	tool, ok := f.Get(call.Name)
	if !ok {
		return models.ToolResult{
			ID:    call.ID,
			Name:  call.Name,
			OK:    false,
			Error: fmt.Sprintf("NotFound: tool %q is not registered", call.Name),
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := tool.Invoke(callCtx, call.Arguments)
		done <- outcome{result: result, err: err}
	}()

	select {
	case <-callCtx.Done():
		return models.ToolResult{
			ID:        call.ID,
			Name:      call.Name,
			OK:        false,
			Error:     fmt.Sprintf("Timeout: Timeout after %s", timeout),
			ElapsedMS: time.Since(start).Milliseconds(),
		}
	case o := <-done:
		elapsed := time.Since(start).Milliseconds()
		if o.err != nil {
			return models.ToolResult{
				ID:        call.ID,
				Name:      call.Name,
				OK:        false,
				Error:     o.err.Error(),
				ElapsedMS: elapsed,
			}
		}
		return models.ToolResult{
			ID:        call.ID,
			Name:      call.Name,
			OK:        true,
			Result:    normalizeResult(o.result),
			ElapsedMS: elapsed,
		}
	}
}
