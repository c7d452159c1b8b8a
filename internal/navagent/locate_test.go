package navagent

import (
	"testing"

	"github.com/haasonsaas/surfari-go/pkg/models"
)

func TestSequenceRatioIdenticalStringsIsOne(t *testing.T) {
	if r := sequenceRatio("[Submit]", "[Submit]"); r != 1 {
		t.Fatalf("expected ratio 1, got %v", r)
	}
}

func TestSequenceRatioEmptyStringsIsOne(t *testing.T) {
	if r := sequenceRatio("", ""); r != 1 {
		t.Fatalf("expected ratio 1 for two empty strings, got %v", r)
	}
}

func TestSequenceRatioCompletelyDifferentIsZero(t *testing.T) {
	if r := sequenceRatio("[abc]", "{xyz}"); r != 0 {
		t.Fatalf("expected ratio 0, got %v", r)
	}
}

func TestSequenceRatioCloseStringsAboveThreshold(t *testing.T) {
	r := sequenceRatio("[Submit Order]", "[Submit Oder]")
	if r < fuzzyMinSimilarity {
		t.Fatalf("expected near-match ratio above threshold, got %v", r)
	}
}

func buildIndex(entries map[string]string) *models.LocatorIndex {
	idx := models.NewLocatorIndex()
	for token, xpath := range entries {
		idx.Set(models.LocatorEntry{DisplayToken: token, XPath: xpath})
	}
	return idx
}

func TestLocateStepExactMatch(t *testing.T) {
	idx := buildIndex(map[string]string{"[Submit]": "//button"})
	result, ok := LocateStep(idx, "[Submit]")
	if !ok || result.Handle.Token != "[Submit]" {
		t.Fatalf("expected exact match, got %+v ok=%v", result, ok)
	}
}

func TestLocateStepExtractsBracketFromSurroundingText(t *testing.T) {
	idx := buildIndex(map[string]string{"[Submit]": "//button"})
	result, ok := LocateStep(idx, "click the [Submit] button")
	if !ok || result.Handle.Token != "[Submit]" {
		t.Fatalf("expected bracket extraction to find token, got %+v ok=%v", result, ok)
	}
}

func TestLocateStepFallsBackToOriginalTextMapping(t *testing.T) {
	idx := models.NewLocatorIndex()
	idx.Set(models.LocatorEntry{DisplayToken: "[Submit]2"})
	idx.SetOriginal("[Submit]2", "[Submit]")
	result, ok := LocateStep(idx, "[Submit]")
	if !ok || result.Handle.Token != "[Submit]2" {
		t.Fatalf("expected original-text fallback to resolve, got %+v ok=%v", result, ok)
	}
}

func TestLocateStepWhitespaceNormalizationFallback(t *testing.T) {
	idx := buildIndex(map[string]string{"[Submit Order]": "//button"})
	result, ok := LocateStep(idx, "[Submit\nOrder]")
	if !ok || result.Handle.Token != "[Submit Order]" {
		t.Fatalf("expected newline-normalized match, got %+v ok=%v", result, ok)
	}
}

func TestLocateStepButtonMisplacementFix(t *testing.T) {
	idx := buildIndex(map[string]string{"[Submit]": "//button"})
	result, ok := LocateStep(idx, "[button Submit]")
	if !ok || result.Handle.Token != "[Submit]" {
		t.Fatalf("expected button-misplacement fix to resolve, got %+v ok=%v", result, ok)
	}
}

func TestLocateStepFuzzyMatchRespectsBracketType(t *testing.T) {
	idx := buildIndex(map[string]string{"{_1}": "//input[1]", "[Submit]": "//button"})
	result, ok := LocateStep(idx, "{1}")
	if !ok || result.Handle.Token != "{_1}" {
		t.Fatalf("expected fuzzy match within brace candidates, got %+v ok=%v", result, ok)
	}
}

func TestLocateStepUnresolvable(t *testing.T) {
	idx := buildIndex(map[string]string{"[Submit]": "//button"})
	_, ok := LocateStep(idx, "[Completely Different Thing Entirely]")
	if ok {
		t.Fatalf("expected no match")
	}
}

func TestLocateStepsHardFailsOnFirstStep(t *testing.T) {
	idx := buildIndex(map[string]string{"[Submit]": "//button"})
	steps := []models.LLMStep{{Action: models.ActionClick, Target: "[Missing]"}}
	_, err := LocateSteps(idx, steps)
	var te *TurnError
	if err == nil {
		t.Fatalf("expected hard failure on first step")
	}
	if !asTurnError(err, &te) || te.Kind != ErrKindLocator {
		t.Fatalf("expected ErrKindLocator, got %v", err)
	}
}

func TestLocateStepsSoftFailsOnLaterStep(t *testing.T) {
	idx := buildIndex(map[string]string{"[Submit]": "//button"})
	steps := []models.LLMStep{
		{Action: models.ActionClick, Target: "[Submit]"},
		{Action: models.ActionClick, Target: "[Missing]"},
	}
	resolved, err := LocateSteps(idx, steps)
	if err != nil {
		t.Fatalf("expected soft failure, not an error: %v", err)
	}
	if len(resolved) != 1 {
		t.Fatalf("expected only the first step resolved, got %d", len(resolved))
	}
}

func TestLocateStepsStopsAtExpandableElement(t *testing.T) {
	idx := models.NewLocatorIndex()
	idx.Set(models.LocatorEntry{DisplayToken: "[[Section]]"})
	idx.Set(models.LocatorEntry{DisplayToken: "[Submit]"})
	steps := []models.LLMStep{
		{Action: models.ActionClick, Target: "[[Section]]"},
		{Action: models.ActionClick, Target: "[Submit]"},
	}
	resolved, err := LocateSteps(idx, steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resolved) != 1 || !resolved[0].IsExpandable {
		t.Fatalf("expected resolution to stop after the expandable element, got %+v", resolved)
	}
}

func asTurnError(err error, target **TurnError) bool {
	te, ok := err.(*TurnError)
	if ok {
		*target = te
	}
	return ok
}
