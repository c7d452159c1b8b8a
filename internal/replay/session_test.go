package replay

import (
	"context"
	"testing"

	"github.com/haasonsaas/surfari-go/pkg/models"
)

type fakeParameterizer struct {
	result ParameterizeResult
	err    error
}

func (f fakeParameterizer) Parameterize(context.Context, string) (ParameterizeResult, error) {
	return f.result, f.err
}

func TestSessionAttemptLoadExactMatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	taskDesc := "book a flight to Boston"
	if _, err := s.Save(ctx, Recording{
		SiteID:          1,
		SiteName:        "united",
		TaskHash:        TaskHash(taskDesc),
		TaskDescription: taskDesc,
		ChatHistory:     []models.ChatMessage{models.NewUserMessage(taskDesc)},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	session := &Session{Store: s, SiteID: 1, SiteName: "united", TaskDescription: taskDesc}
	result, err := session.AttemptLoad(ctx)
	if err != nil {
		t.Fatalf("AttemptLoad: %v", err)
	}
	if !result.Loaded {
		t.Fatalf("expected exact match to load")
	}
}

func TestSessionAttemptLoadNoMatchWithoutParameterization(t *testing.T) {
	s := openTestStore(t)
	session := &Session{Store: s, SiteID: 1, SiteName: "united", TaskDescription: "book a flight"}
	result, err := session.AttemptLoad(context.Background())
	if err != nil {
		t.Fatalf("AttemptLoad: %v", err)
	}
	if result.Loaded {
		t.Fatalf("expected no recording to load")
	}
}

func TestSessionAttemptLoadParameterizedSubstitutesVariables(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	paramDesc := "book a flight to :1"
	if _, err := s.Save(ctx, Recording{
		SiteID:                1,
		SiteName:              "united",
		TaskHash:              TaskHash("book a flight to Boston"),
		TaskDescription:       "book a flight to Boston",
		ParameterizedTaskHash: TaskHash(paramDesc),
		ParameterizedTaskDesc: paramDesc,
		ChatHistory:           []models.ChatMessage{models.NewUserMessage("book a flight to Boston")},
		HistoryVariables:      map[string]string{"1": "Boston"},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	session := &Session{
		Store:               s,
		Parameterizer:       fakeParameterizer{result: ParameterizeResult{ParameterizedTaskDesc: paramDesc, Variables: map[string]string{"1": "Seattle"}}},
		UseParameterization: true,
		SiteID:              1,
		SiteName:            "united",
		TaskDescription:     "book a flight to Seattle",
	}
	result, err := session.AttemptLoad(ctx)
	if err != nil {
		t.Fatalf("AttemptLoad: %v", err)
	}
	if !result.Loaded {
		t.Fatalf("expected parameterized match to load")
	}
	if result.ChatHistory[0].Text != "book a flight to Seattle" {
		t.Fatalf("expected variable substitution, got %q", result.ChatHistory[0].Text)
	}
}

func TestSessionAttemptLoadParameterizerReturningSameTextSkips(t *testing.T) {
	s := openTestStore(t)
	session := &Session{
		Store:               s,
		Parameterizer:       fakeParameterizer{result: ParameterizeResult{ParameterizedTaskDesc: "book a flight", Variables: nil}},
		UseParameterization: true,
		SiteID:              1,
		TaskDescription:     "book a flight",
	}
	result, err := session.AttemptLoad(context.Background())
	if err != nil {
		t.Fatalf("AttemptLoad: %v", err)
	}
	if result.Loaded {
		t.Fatalf("expected no load when parameterization returns the same description")
	}
}
