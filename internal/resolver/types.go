// Package resolver implements the Value Resolver Chain (spec.md §4.6): a
// fixed pipeline that fills in a step's resolve_value placeholder —
// sentinels pass through unchanged, the secret resolver matches the
// current page's registrable domain against a stored credential,  an
// optional externally-configured resolver and then an optional
// embedding (Pinecone) resolver get a shot next, and anything still
// unresolved demotes the whole turn to a user hand-off.
package resolver

import "context"

// Context carries the per-turn facts an external Resolver needs to make
// a decision, mirroring spec.md §4.6's {site_id, site_name, task_goal,
// current_url}.
type Context struct {
	SiteID   int64
	SiteName string
	TaskGoal string
	CurrentURL string
}

// Resolver is the contract for the configured-resolver stage:
// resolve({text, context}) -> {value?}. A Resolver that cannot resolve a
// given placeholder returns ("", false, nil) rather than an error, so the
// chain can fall through to delegation without treating "don't know" as
// a failure.
type Resolver interface {
	Resolve(ctx context.Context, text string, rctx Context) (value string, ok bool, err error)
}
