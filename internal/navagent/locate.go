package navagent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/haasonsaas/surfari-go/pkg/models"
)

// bracketContent extracts the bracketed or braced token a model puts in
// a step's Target field, e.g. "[Submit]" or "{_3}". Grounded on
// full_text_extractor.py's get_locator_from_text, which pulls this same
// span out of the raw target text before any lookup is attempted.
var bracketContent = regexp.MustCompile(`(\[[^\]]*\]|\{[^}]*\})`)

// bracketDigitFix repairs a model target where a disambiguation suffix
// was misplaced inside the brackets instead of after them, e.g.
// "[Row 2]" meant to be "[Row]2".
var bracketDigitFix = regexp.MustCompile(`^(\[[^\]]*?)\s*(\d+)(\])$`)

// bracketButtonFix repairs a target where the model wrote the element
// kind inside the brackets, e.g. "[button Submit]" meant to be
// "[Submit]".
var bracketButtonFix = regexp.MustCompile(`^\[(?:button|link|icon)\s+(.*)\]$`)

const fuzzyMinSimilarity = 0.8

// LocateResult is the outcome of resolving one step's raw target text
// against the current turn's locator index.
type LocateResult struct {
	Handle       *models.LocatorHandle
	IsExpandable bool
}

// LocateStep maps a model-given target string to a resolved locator
// handle. The Page Action Executor only does exact token lookups against
// the index; this is the fallback chain the original implements in
// get_locator_from_text: exact match, then the pre-disambiguation
// "original text" mapping, then whitespace-normalization variants, then
// (only when the text still carries brackets or braces) two
// misplacement-fix transforms, and finally a fuzzy match restricted to
// candidates sharing the same outer bracket type.
func LocateStep(index *models.LocatorIndex, rawTarget string) (LocateResult, bool) {
	content := extractBracketed(rawTarget)

	if entry, ok := index.Get(content); ok {
		return resultFor(content, entry), true
	}

	if token, ok := matchOriginal(index, content); ok {
		entry, _ := index.Get(token)
		return resultFor(token, entry), true
	}

	for _, candidate := range normalizationVariants(content) {
		if entry, ok := index.Get(candidate); ok {
			return resultFor(candidate, entry), true
		}
		if token, ok := matchOriginal(index, candidate); ok {
			entry, _ := index.Get(token)
			return resultFor(token, entry), true
		}
	}

	if strings.ContainsAny(content, "[{") {
		for _, candidate := range misplacementFixes(content) {
			if entry, ok := index.Get(candidate); ok {
				return resultFor(candidate, entry), true
			}
		}
	}

	if token, ok := fuzzyMatch(index, content); ok {
		entry, _ := index.Get(token)
		return resultFor(token, entry), true
	}

	return LocateResult{}, false
}

func resultFor(token string, entry models.LocatorEntry) LocateResult {
	return LocateResult{
		Handle:       &models.LocatorHandle{Token: token},
		IsExpandable: isExpandableToken(token, entry),
	}
}

// isExpandableToken flags elements the original marks with a "[[" or
// "[E]" prefix convention to denote a collapsed section that must be
// expanded before it can be interacted with further.
func isExpandableToken(token string, entry models.LocatorEntry) bool {
	return strings.HasPrefix(token, "[[") || strings.HasPrefix(token, "[E]") || strings.HasPrefix(entry.LabelText, "[E]")
}

func extractBracketed(raw string) string {
	if strings.HasPrefix(raw, "[[") {
		if end := strings.Index(raw, "]]"); end != -1 {
			return raw[:end+2]
		}
	}
	if m := bracketContent.FindString(raw); m != "" {
		return m
	}
	return raw
}

func matchOriginal(index *models.LocatorIndex, content string) (string, bool) {
	for _, token := range index.Tokens() {
		if original, ok := index.Original(token); ok && original == content {
			return token, true
		}
	}
	return "", false
}

func normalizationVariants(content string) []string {
	return []string{
		strings.ReplaceAll(content, "\n", " "),
		strings.ReplaceAll(content, "\n", ""),
	}
}

func misplacementFixes(content string) []string {
	var variants []string
	if m := bracketDigitFix.FindStringSubmatch(content); m != nil {
		variants = append(variants, m[1]+m[3]+m[2])
	}
	if m := bracketButtonFix.FindStringSubmatch(content); m != nil {
		variants = append(variants, "["+m[1]+"]")
	}
	return variants
}

// fuzzyMatch falls back to approximate matching when every exact and
// normalized lookup misses, restricted to tokens whose outer bracket
// type ("[" vs "{") matches the input's, mirroring the original's
// bracket-type guard on its fuzzy candidate pool.
func fuzzyMatch(index *models.LocatorIndex, content string) (string, bool) {
	if content == "" {
		return "", false
	}
	wantBrace := strings.HasPrefix(content, "{")

	best := ""
	bestRatio := 0.0
	for _, token := range index.Tokens() {
		if strings.HasPrefix(token, "{") != wantBrace {
			continue
		}
		ratio := sequenceRatio(content, token)
		if ratio > bestRatio {
			bestRatio = ratio
			best = token
		}
	}
	if bestRatio >= fuzzyMinSimilarity {
		return best, true
	}
	return "", false
}

// sequenceRatio is a from-scratch port of Python's
// difflib.SequenceMatcher(None, a, b).ratio(): 2*M / T, where M is the
// total length of matching blocks found by the Ratcliff/Obershelp
// longest-matching-block recursion and T is len(a)+len(b). No
// Levenshtein/fuzzy-matching library exists anywhere in the example
// corpus (go.mod has no such dependency, and none of the pack repos
// import one), so this is implemented directly on the standard library
// rather than against an ecosystem package — see DESIGN.md.
func sequenceRatio(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	matches := matchingBlockLength(a, b)
	return 2 * float64(matches) / float64(len(a)+len(b))
}

func matchingBlockLength(a, b string) int {
	start, length := longestMatch(a, b)
	if length == 0 {
		return 0
	}
	total := length
	total += matchingBlockLength(a[:start.aStart], b[:start.bStart])
	total += matchingBlockLength(a[start.aStart+length:], b[start.bStart+length:])
	return total
}

type matchSpan struct {
	aStart, bStart int
}

func longestMatch(a, b string) (matchSpan, int) {
	bIndex := make(map[byte][]int, len(b))
	for i := 0; i < len(b); i++ {
		bIndex[b[i]] = append(bIndex[b[i]], i)
	}

	var bestA, bestB, bestLen int
	prev := make(map[int]int)
	for i := 0; i < len(a); i++ {
		cur := make(map[int]int)
		for _, j := range bIndex[a[i]] {
			runLen := prev[j-1] + 1
			cur[j] = runLen
			if runLen > bestLen {
				bestLen = runLen
				bestA = i - runLen + 1
				bestB = j - runLen + 1
			}
		}
		prev = cur
	}
	return matchSpan{aStart: bestA, bStart: bestB}, bestLen
}

// LocateSteps resolves every step's target against the index in order.
// A failure on the first step is a hard failure: the caller should
// surface it to the model and count it as an error. A failure on any
// later step is soft: resolution simply stops there, but every step
// already resolved is still returned for execution. Resolution also
// stops early, successfully, the moment an expandable element is
// matched, since the original treats expanding a section as consuming
// the rest of the turn.
func LocateSteps(index *models.LocatorIndex, steps []models.LLMStep) ([]models.LLMStep, error) {
	resolved := make([]models.LLMStep, len(steps))
	copy(resolved, steps)

	for i := range resolved {
		result, ok := LocateStep(index, resolved[i].Target)
		if !ok {
			if i == 0 {
				return resolved, &TurnError{Kind: ErrKindLocator, Err: fmt.Errorf("could not locate target %q", resolved[i].Target)}
			}
			return resolved[:i], nil
		}
		resolved[i].Locator = result.Handle
		resolved[i].IsExpandable = result.IsExpandable
		if result.IsExpandable {
			return resolved[:i+1], nil
		}
	}
	return resolved, nil
}
