package distill

import "context"

// PageDriver is the minimal surface the distiller needs from a live
// browser page. internal/browser's Page type satisfies this structurally;
// distill does not import internal/browser to avoid a cycle.
type PageDriver interface {
	// Evaluate runs script (a JS expression evaluating to a function, as
	// produced by walkScript) in the page and decodes its JSON-serializable
	// return value into out.
	Evaluate(ctx context.Context, script string, out any) error
	URL() string
}
