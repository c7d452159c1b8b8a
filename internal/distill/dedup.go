package distill

import "fmt"

// isInteractableToken reports whether a segment's annotated content is one
// of the bracket/brace token forms subject to duplicate disambiguation
// ([Label], [[Label]], {value}, {{option}}).
func isInteractableToken(content string) bool {
	if content == "" {
		return false
	}
	switch content[0] {
	case '[', '{':
		return true
	}
	return false
}

// disambiguate appends a 1-based occurrence index to any interactable
// token whose text repeats across the page, leaving singletons and
// non-interactable content untouched.
func disambiguate(segments []segment) []line {
	counts := make(map[string]int, len(segments))
	for _, s := range segments {
		if isInteractableToken(s.Content) {
			counts[s.Content]++
		}
	}

	seen := make(map[string]int, len(segments))
	lines := make([]line, 0, len(segments))
	for _, s := range segments {
		token := s.Content
		if isInteractableToken(token) && counts[token] > 1 {
			seen[token]++
			token = fmt.Sprintf("%s%d", token, seen[token])
		}
		lines = append(lines, line{seg: s, displayToken: token})
	}
	return lines
}
