package distill

import (
	"regexp"
	"strings"
)

// minMaskLen is the shortest digit-bearing token masking considers.
const minMaskLen = 5

var (
	tokenPattern    = regexp.MustCompile(`\S+`)
	digitPattern    = regexp.MustCompile(`\d`)
	dateShapePat    = regexp.MustCompile(`^\d{1,4}[/-]\d{1,2}([/-]\d{1,4})?$`)
	timeShapePat    = regexp.MustCompile(`(?i)^\d{1,2}:\d{2}(:\d{2})?(am|pm)?$`)
	monthDigitShape = regexp.MustCompile(`(?i)^(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?-?\.?\d+$`)
	normalizeStrip  = "{}[](),:;$'"
)

func seededDoNotMask(goal string) map[string]struct{} {
	set := map[string]struct{}{
		"2024": {}, "2025": {}, "2026": {}, "1099": {}, "401k": {},
	}
	for _, tok := range tokenPattern.FindAllString(goal, -1) {
		if digitPattern.MatchString(tok) {
			set[tok] = struct{}{}
		}
	}
	return set
}

func isDateTimeShaped(token string) bool {
	return dateShapePat.MatchString(token) || timeShapePat.MatchString(token) || monthDigitShape.MatchString(token)
}

// MaskMap is the reverse mapping built by one Mask pass: masked token text
// (and its normalized form) back to the original text it replaced.
type MaskMap struct {
	exact      map[string]string
	normalized map[string]string
}

func newMaskMap() *MaskMap {
	return &MaskMap{exact: map[string]string{}, normalized: map[string]string{}}
}

func (mm *MaskMap) record(masked, original string) {
	mm.exact[masked] = original
	mm.normalized[normalizeNumber(masked)] = original
}

// Unmask reverses masking in a single string: literal token lookup first,
// then a normalized-number lookup for tokens the model slightly
// reformatted (added a "$", dropped a trailing ".0", etc.).
func (mm *MaskMap) Unmask(s string) string {
	return tokenPattern.ReplaceAllStringFunc(s, func(tok string) string {
		if orig, ok := mm.exact[tok]; ok {
			return orig
		}
		if orig, ok := mm.normalized[normalizeNumber(tok)]; ok {
			return orig
		}
		return tok
	})
}

// UnmaskValue recursively unmasks every string found in an
// assistant-produced structure (maps, slices, or a bare string), as
// produced by decoding a tool call's JSON arguments.
func (mm *MaskMap) UnmaskValue(v any) any {
	switch val := v.(type) {
	case string:
		return mm.Unmask(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = mm.UnmaskValue(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = mm.UnmaskValue(child)
		}
		return out
	default:
		return v
	}
}

func normalizeNumber(s string) string {
	sign := ""
	rest := s
	if strings.HasPrefix(rest, "-") {
		sign = "-"
		rest = rest[1:]
	}
	dollar := ""
	if strings.HasPrefix(rest, "$") {
		dollar = "$"
		rest = rest[1:]
	}
	var b strings.Builder
	for _, r := range rest {
		if strings.ContainsRune(normalizeStrip, r) {
			continue
		}
		b.WriteRune(r)
	}
	out := strings.TrimSuffix(b.String(), ".0")
	return sign + dollar + out
}

// maskDigits applies a stable per-distillation digit substitution cipher,
// preserving every non-digit rune in place so token shape (dashes,
// slashes, punctuation) is unaffected.
func maskDigits(token string, shift int) string {
	var b strings.Builder
	for _, r := range token {
		if r >= '0' && r <= '9' {
			d := int(r - '0')
			b.WriteByte(byte('0' + (d+shift)%10))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Mask rewrites digit-bearing tokens of length >= minMaskLen in text,
// skipping the seeded donot-mask set and date/time-shaped tokens. The
// returned MaskMap reverses every substitution this call made; mapping is
// stable (the same input token always masks to the same output token)
// within this one call.
func Mask(text, goal string) (string, *MaskMap) {
	doNotMask := seededDoNotMask(goal)
	reverse := newMaskMap()
	forward := map[string]string{}
	shift := 3

	masked := tokenPattern.ReplaceAllStringFunc(text, func(tok string) string {
		if len(tok) < minMaskLen || !digitPattern.MatchString(tok) {
			return tok
		}
		if _, skip := doNotMask[tok]; skip {
			return tok
		}
		if isDateTimeShaped(tok) {
			return tok
		}
		if already, ok := forward[tok]; ok {
			return already
		}
		replacement := maskDigits(tok, shift)
		if replacement == tok {
			// Shift-by-10 cycle landed back on the same digits; bump the
			// shift for subsequent tokens so masking still does something.
			shift = (shift + 1) % 9
			if shift == 0 {
				shift = 1
			}
			replacement = maskDigits(tok, shift)
		}
		forward[tok] = replacement
		reverse.record(replacement, tok)
		return replacement
	})
	return masked, reverse
}
