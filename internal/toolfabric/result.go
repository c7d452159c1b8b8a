package toolfabric

import (
	"encoding/json"
	"fmt"
)

// normalizeResult guarantees every successful tool result is
// JSON-encodable: values that already round-trip through json.Marshal
// pass through unchanged, and anything that doesn't (channels, funcs, a
// stray error value) falls back to its Go %#v representation as a string.
func normalizeResult(v any) any {
	if v == nil {
		return nil
	}
	if _, err := json.Marshal(v); err == nil {
		return v
	}
	return fmt.Sprintf("%#v", v)
}
