package toolfabric

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// localTool wraps a typed Go function as a Tool. T is the function's
// argument struct; its JSON schema is derived by reflection so callers
// never hand-write a parameters schema.
type localTool[T any] struct {
	decl   Declaration
	fn     func(ctx context.Context, args T) (any, error)
	fabric *Fabric
}

func (t *localTool[T]) Declaration() Declaration { return t.decl }

func (t *localTool[T]) Invoke(ctx context.Context, args map[string]any) (any, error) {
	coerced := args
	if t.fabric == nil || !t.fabric.StrictTypes {
		coerced = coerceScalars(args)
	}
	raw, err := json.Marshal(coerced)
	if err != nil {
		return nil, fmt.Errorf("ArgumentError: %v", err)
	}
	var typed T
	if err := json.Unmarshal(raw, &typed); err != nil {
		return nil, fmt.Errorf("ArgumentError: %v", err)
	}
	return t.fn(ctx, typed)
}

// RegisterLocal introspects T's JSON tags into a flattened parameters
// schema (invopop/jsonschema with DoNotReference, so no $ref/$defs reach
// the model) and registers fn under name.
func RegisterLocal[T any](f *Fabric, name, description string, fn func(ctx context.Context, args T) (any, error)) error {
	schema, err := flattenedSchema(new(T))
	if err != nil {
		return fmt.Errorf("toolfabric: reflect schema for %q: %w", name, err)
	}
	f.register(&localTool[T]{
		decl:   Declaration{Name: name, Description: description, Parameters: schema},
		fn:     fn,
		fabric: f,
	})
	return nil
}

func flattenedSchema(v any) (json.RawMessage, error) {
	reflector := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(v)
	// Definitions/$defs should already be empty under DoNotReference, but
	// strip them defensively so a stray nested $ref never reaches a
	// vendor that rejects it.
	schema.Definitions = nil

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
