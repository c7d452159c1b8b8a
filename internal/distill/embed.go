package distill

import (
	_ "embed"
)

// walkScript is the DOM-walk script injected into a page (and reachable
// same-origin descendant frames) to produce coordinate-tagged segments.
// It is embedded at build time as a versioned asset; the loader never
// substitutes path or content at runtime.
//
//go:embed assets/walk.js
var walkScript string

const walkScriptVersion = "v1"
