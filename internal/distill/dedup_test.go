package distill

import "testing"

func TestDisambiguateDuplicateTokens(t *testing.T) {
	segments := []segment{
		{Content: "[Login]"},
		{Content: "[Login]"},
		{Content: "[Login]"},
		{Content: "[Logout]"},
		{Content: "plain text"},
	}
	lines := disambiguate(segments)

	want := []string{"[Login]1", "[Login]2", "[Login]3", "[Logout]", "plain text"}
	for i, l := range lines {
		if l.displayToken != want[i] {
			t.Errorf("line %d displayToken = %q, want %q", i, l.displayToken, want[i])
		}
	}
}

func TestDisambiguateLeavesSingletonsAlone(t *testing.T) {
	segments := []segment{{Content: "{Search}"}}
	lines := disambiguate(segments)
	if lines[0].displayToken != "{Search}" {
		t.Fatalf("expected untouched token, got %q", lines[0].displayToken)
	}
}
