package models

// TokenUsage is one model call's token accounting, attributable to a
// vendor and model for cost computation and per-purpose aggregation.
type TokenUsage struct {
	Vendor       string
	Model        string
	Prompt       int64
	CachedPrompt int64
	Completion   int64
}

// Add returns the element-wise sum of two usages. Vendor/Model are taken
// from the receiver; callers accumulate per (vendor, model, purpose) key
// so this is only ever called on matching pairs.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		Vendor:       u.Vendor,
		Model:        u.Model,
		Prompt:       u.Prompt + other.Prompt,
		CachedPrompt: u.CachedPrompt + other.CachedPrompt,
		Completion:   u.Completion + other.Completion,
	}
}
