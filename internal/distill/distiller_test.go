package distill

import (
	"context"
	"encoding/json"
	"testing"
)

type fakePage struct {
	segments []segment
	url      string
}

func (f *fakePage) Evaluate(ctx context.Context, script string, out any) error {
	raw, err := json.Marshal(f.segments)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (f *fakePage) URL() string { return f.url }

func TestDistillBuildsLocatorIndex(t *testing.T) {
	page := &fakePage{
		url: "https://acme.test/search",
		segments: []segment{
			{Content: "{Search}", X: 100, Y: 50, W: 120, H: 20, XPath: "/html/body/input[1]", Locator: "#search"},
			{Content: "[Submit]", X: 240, Y: 50, W: 60, H: 20, XPath: "/html/body/button[1]"},
		},
	}

	d := New()
	result, err := d.Distill(context.Background(), page, "search for widgets", false)
	if err != nil {
		t.Fatalf("Distill: %v", err)
	}
	if result.Text == "" {
		t.Fatal("expected non-empty distilled text")
	}
	entry, ok := result.Index.Get("{Search}")
	if !ok {
		t.Fatal("expected {Search} in locator index")
	}
	if entry.XPath != "/html/body/input[1]" {
		t.Errorf("XPath = %q, want input[1] path", entry.XPath)
	}
}

func TestDistillMasksWhenRequested(t *testing.T) {
	page := &fakePage{
		segments: []segment{
			{Content: "Account 84921733", X: 10, Y: 10, W: 200, H: 20},
		},
	}
	d := New()
	result, err := d.Distill(context.Background(), page, "", true)
	if err != nil {
		t.Fatalf("Distill: %v", err)
	}
	if result.MaskMap == nil {
		t.Fatal("expected a mask map when masking is requested")
	}
}
