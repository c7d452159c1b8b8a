package distill

import "testing"

func TestMaskRoundTrip(t *testing.T) {
	text := "Account 84921733 order placed on 01/15/2025 ref 1099"
	masked, reverse := Mask(text, "")

	if masked == text {
		t.Fatal("expected masking to change the account number")
	}
	unmasked := reverse.Unmask(masked)
	if unmasked != text {
		t.Fatalf("round trip mismatch:\n got  %q\n want %q", unmasked, text)
	}
}

func TestMaskSkipsDonotMaskSet(t *testing.T) {
	text := "Plan 401k enrollment year 2025"
	masked, _ := Mask(text, "")
	if masked != text {
		t.Fatalf("expected no masking, got %q", masked)
	}
}

func TestMaskSkipsShortTokens(t *testing.T) {
	text := "Code 1234"
	masked, _ := Mask(text, "")
	if masked != text {
		t.Fatalf("expected token under minMaskLen to be left alone, got %q", masked)
	}
}

func TestMaskSkipsGoalDigits(t *testing.T) {
	text := "Order 998877 confirmed"
	masked, _ := Mask(text, "find order 998877 status")
	if masked != text {
		t.Fatalf("expected goal-seeded token to be skipped, got %q", masked)
	}
}

func TestMaskSkipsDateShape(t *testing.T) {
	text := "Delivery 12/25/2026 expected"
	masked, _ := Mask(text, "")
	if masked != text {
		t.Fatalf("expected date-shaped token to be left alone, got %q", masked)
	}
}

func TestUnmaskValueRecursive(t *testing.T) {
	text := "confirm 55512345"
	masked, reverse := Mask(text, "")
	tokens := tokenPattern.FindAllString(masked, -1)
	maskedNumber := tokens[len(tokens)-1]

	structured := map[string]any{
		"value": maskedNumber,
		"nested": []any{maskedNumber},
	}
	out := reverse.UnmaskValue(structured).(map[string]any)
	if out["value"] != "55512345" {
		t.Fatalf("expected unmasked value, got %v", out["value"])
	}
	nested := out["nested"].([]any)
	if nested[0] != "55512345" {
		t.Fatalf("expected unmasked nested value, got %v", nested[0])
	}
}

func TestNormalizeNumber(t *testing.T) {
	cases := map[string]string{
		"$1,234.0": "$1234",
		"(55512345)": "55512345",
		"-42":        "-42",
	}
	for in, want := range cases {
		if got := normalizeNumber(in); got != want {
			t.Errorf("normalizeNumber(%q) = %q, want %q", in, got, want)
		}
	}
}
