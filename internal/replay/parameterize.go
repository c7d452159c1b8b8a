package replay

import (
	"context"
	"fmt"
)

// Parameterizer turns a concrete task description into a templated one
// with numbered placeholders (":1", ":2", ...) plus the literal values
// those placeholders stand for, so two tasks that differ only in, say,
// a date or a city name can share one recorded run.
type Parameterizer interface {
	Parameterize(ctx context.Context, taskDescription string) (ParameterizeResult, error)
}

// ParameterizeResult is the parameterizer's output: the templated task
// text and the variable values it extracted, keyed by placeholder name
// (e.g. "1", "2").
type ParameterizeResult struct {
	ParameterizedTaskDesc string
	Variables             map[string]string
}

// valid reports whether the parameterizer actually produced a usable,
// different task description: an empty or identical result means
// nothing to key a parameterized lookup on.
func (r ParameterizeResult) valid(original string) bool {
	return r.ParameterizedTaskDesc != "" && r.ParameterizedTaskDesc != original
}

// noopParameterizer is used when no LLM-backed parameterizer is wired
// up: parameterized lookup is simply skipped.
type noopParameterizer struct{}

func (noopParameterizer) Parameterize(context.Context, string) (ParameterizeResult, error) {
	return ParameterizeResult{}, fmt.Errorf("replay: no parameterizer configured")
}
