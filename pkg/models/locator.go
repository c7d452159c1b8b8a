package models

import (
	"fmt"
	"sync"
)

// BoundingBox is a screen-space rectangle captured by the distiller.
type BoundingBox struct {
	X, Y, W, H float64
}

// LocatorEntry is everything the Page Action Executor needs to turn one
// annotated display token back into a live element handle. It is rebuilt
// on every turn from the distiller and never shared across turns.
type LocatorEntry struct {
	DisplayToken  string
	FrameID       string
	BoundingBox   BoundingBox
	XPath         string
	LocatorString string
	LabelText     string
}

// LocatorIndex maps a distilled text's display tokens back to
// LocatorEntry values. Duplicate tokens are disambiguated by the
// distiller before insertion, so uniqueness holds by construction.
// Resolution is lazy: the index also remembers each token's original
// (pre-disambiguation) text for fallback lookups.
type LocatorIndex struct {
	mu       sync.RWMutex
	entries  map[string]LocatorEntry
	original map[string]string
}

// NewLocatorIndex returns an empty index ready for one turn's tokens.
func NewLocatorIndex() *LocatorIndex {
	return &LocatorIndex{
		entries:  make(map[string]LocatorEntry),
		original: make(map[string]string),
	}
}

// Set registers or overwrites the entry for a display token.
func (idx *LocatorIndex) Set(entry LocatorEntry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[entry.DisplayToken] = entry
}

// SetOriginal records the pre-disambiguation text a token was derived
// from, for fallback lookups when an exact token match fails.
func (idx *LocatorIndex) SetOriginal(token, original string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.original[token] = original
}

// Get returns the entry for an exact token match.
func (idx *LocatorIndex) Get(token string) (LocatorEntry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	entry, ok := idx.entries[token]
	return entry, ok
}

// Original returns the pre-disambiguation text for a token, if recorded.
func (idx *LocatorIndex) Original(token string) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	text, ok := idx.original[token]
	return text, ok
}

// Tokens returns every display token currently indexed, in no particular
// order; callers that need determinism should sort the result.
func (idx *LocatorIndex) Tokens() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	tokens := make([]string, 0, len(idx.entries))
	for t := range idx.entries {
		tokens = append(tokens, t)
	}
	return tokens
}

// Len reports how many tokens are indexed.
func (idx *LocatorIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// ErrLocatorUnresolved is returned when a token cannot be matched by any
// resolution strategy (exact, normalization fallback, or fuzzy match).
type ErrLocatorUnresolved struct {
	Token string
}

func (e *ErrLocatorUnresolved) Error() string {
	return fmt.Sprintf("models: locator unresolved for token %q", e.Token)
}
