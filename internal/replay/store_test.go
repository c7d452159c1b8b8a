package replay

import (
	"context"
	"testing"

	"github.com/haasonsaas/surfari-go/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTaskHashIsStableAndTrims(t *testing.T) {
	a := TaskHash("  book a flight  ")
	b := TaskHash("book a flight")
	if a != b {
		t.Fatalf("expected whitespace-trimmed hashes to match, got %q vs %q", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("expected a 16-char hash, got %d chars: %q", len(a), a)
	}
}

func TestTaskHashDiffersForDifferentText(t *testing.T) {
	if TaskHash("book a flight") == TaskHash("cancel a flight") {
		t.Fatalf("expected different task text to hash differently")
	}
}

func TestStoreSaveAndFetchExact(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := Recording{
		SiteID:          1,
		SiteName:        "united",
		TaskHash:        TaskHash("book a flight"),
		TaskDescription: "book a flight",
		ChatHistory: []models.ChatMessage{
			models.NewUserMessage("book a flight"),
			models.NewAssistantTextMessage(`{"step_execution":"SUCCESS","reasoning":"done"}`),
		},
	}
	if _, err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := s.FetchExact(ctx, 1, rec.TaskHash)
	if err != nil {
		t.Fatalf("FetchExact: %v", err)
	}
	if !ok {
		t.Fatalf("expected a match")
	}
	if len(got.ChatHistory) != 2 {
		t.Fatalf("expected 2 recorded messages, got %d", len(got.ChatHistory))
	}
}

func TestStoreFetchExactNoMatch(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.FetchExact(context.Background(), 1, "nonexistent")
	if err != nil {
		t.Fatalf("FetchExact: %v", err)
	}
	if ok {
		t.Fatalf("expected no match")
	}
}

func TestStoreSaveReplacesExistingRowOnReSave(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := Recording{
		SiteID:          1,
		SiteName:        "united",
		TaskHash:        TaskHash("book a flight"),
		TaskDescription: "book a flight",
		ChatHistory:     []models.ChatMessage{models.NewUserMessage("v1")},
	}
	firstID, err := s.Save(ctx, base)
	if err != nil {
		t.Fatalf("Save (first): %v", err)
	}

	base.ChatHistory = []models.ChatMessage{models.NewUserMessage("v2")}
	secondID, err := s.Save(ctx, base)
	if err != nil {
		t.Fatalf("Save (second): %v", err)
	}
	if secondID == firstID {
		t.Fatalf("expected a fresh row id after delete-then-insert")
	}

	got, ok, err := s.FetchExact(ctx, 1, base.TaskHash)
	if err != nil {
		t.Fatalf("FetchExact: %v", err)
	}
	if !ok {
		t.Fatalf("expected a match")
	}
	if len(got.ChatHistory) != 1 || got.ChatHistory[0].Text != "v2" {
		t.Fatalf("expected only the re-saved row to remain, got %+v", got.ChatHistory)
	}
}

func TestStoreSaveAndFetchParameterized(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := Recording{
		SiteID:                2,
		SiteName:              "delta",
		TaskHash:              TaskHash("book a flight to :1"),
		TaskDescription:       "book a flight to :1",
		ParameterizedTaskHash: TaskHash("book a flight to :1 parameterized"),
		ParameterizedTaskDesc: "book a flight to :1",
		ChatHistory:           []models.ChatMessage{models.NewUserMessage("book a flight to Boston")},
		HistoryVariables:      map[string]string{"1": "Boston"},
	}
	if _, err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := s.FetchParameterized(ctx, 2, rec.ParameterizedTaskHash)
	if err != nil {
		t.Fatalf("FetchParameterized: %v", err)
	}
	if !ok {
		t.Fatalf("expected a parameterized match")
	}
	if got.HistoryVariables["1"] != "Boston" {
		t.Fatalf("expected recorded variables to round-trip, got %+v", got.HistoryVariables)
	}
}
