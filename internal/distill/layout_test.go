package distill

import (
	"strings"
	"testing"
)

func makeLine(token string, x, y, w, h float64) line {
	return line{seg: segment{Content: token, X: x, Y: y, W: w, H: h}, displayToken: token}
}

func TestLayoutProducesRowsInOrder(t *testing.T) {
	lines := []line{
		makeLine("[Login]", 10, 10, 60, 20),
		makeLine("{Search}", 120, 10, 100, 20),
		makeLine("[Submit]", 10, 60, 60, 20),
	}
	out := Layout(lines)
	loginIdx := strings.Index(out, "[Login]")
	searchIdx := strings.Index(out, "{Search}")
	submitIdx := strings.Index(out, "[Submit]")
	if loginIdx < 0 || searchIdx < 0 || submitIdx < 0 {
		t.Fatalf("expected all tokens present, got:\n%s", out)
	}
	if !(loginIdx < submitIdx) {
		t.Fatalf("expected row at y=10 to render before row at y=60")
	}
	_ = searchIdx
}

func TestWordWrapForcedSeparator(t *testing.T) {
	wrapped := wordWrap("first part||second part", 40)
	if len(wrapped) != 2 {
		t.Fatalf("expected 2 wrapped lines, got %d: %v", len(wrapped), wrapped)
	}
}

func TestWordWrapSplitsLongWord(t *testing.T) {
	wrapped := wordWrap("supercalifragilisticexpialidocious", 10)
	if len(wrapped) < 2 {
		t.Fatalf("expected a forced split, got %v", wrapped)
	}
	for _, l := range wrapped {
		if len(l) > 10 {
			t.Errorf("line %q exceeds max width", l)
		}
	}
}

func TestCollapseBlankLines(t *testing.T) {
	in := "a\n\n\n\n\n\nb"
	out := collapseBlankLines(in)
	if strings.Contains(out, "\n\n\n\n") {
		t.Fatalf("expected excessive blank lines collapsed, got %q", out)
	}
}
