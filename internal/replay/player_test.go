package replay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/haasonsaas/surfari-go/pkg/models"
)

func TestPlayerNextResponseConsumesFIFOAndDisarmsOnSuccess(t *testing.T) {
	history := []models.ChatMessage{
		models.NewUserMessage("book a flight"),
		models.NewAssistantTextMessage(`{"step_execution":"SINGLE","reasoning":"clicking search"}`),
		models.NewUserMessage("page updated"),
		models.NewAssistantTextMessage(`{"step_execution":"SUCCESS","reasoning":"done"}`),
	}
	player := NewPlayer(history)

	first, ok, err := player.NextResponse()
	if err != nil {
		t.Fatalf("NextResponse: %v", err)
	}
	if !ok || first.StepExecution != models.ExecSingle {
		t.Fatalf("expected first SINGLE turn, got %+v ok=%v", first, ok)
	}
	if !player.Armed() {
		t.Fatalf("expected player still armed after a non-terminal turn")
	}

	second, ok, err := player.NextResponse()
	if err != nil {
		t.Fatalf("NextResponse: %v", err)
	}
	if !ok || second.StepExecution != models.ExecSuccess {
		t.Fatalf("expected second SUCCESS turn, got %+v ok=%v", second, ok)
	}
	if player.Armed() {
		t.Fatalf("expected player to disarm after SUCCESS")
	}

	_, ok, err = player.NextResponse()
	if err != nil {
		t.Fatalf("NextResponse: %v", err)
	}
	if ok {
		t.Fatalf("expected no further turns once disarmed")
	}
}

func TestPlayerDisarmStopsSupplyingTurns(t *testing.T) {
	history := []models.ChatMessage{
		models.NewAssistantTextMessage(`{"step_execution":"SINGLE","reasoning":"x"}`),
		models.NewAssistantTextMessage(`{"step_execution":"SINGLE","reasoning":"y"}`),
	}
	player := NewPlayer(history)
	player.Disarm()
	_, ok, err := player.NextResponse()
	if err != nil {
		t.Fatalf("NextResponse: %v", err)
	}
	if ok {
		t.Fatalf("expected disarmed player to yield nothing")
	}
}

func TestResolveLocatorWithRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	ok, err := ResolveLocatorWithRetry(context.Background(), func() (bool, error) {
		attempts++
		return attempts == 3, nil
	}, 3, time.Millisecond)
	if err != nil {
		t.Fatalf("ResolveLocatorWithRetry: %v", err)
	}
	if !ok {
		t.Fatalf("expected eventual success")
	}
	if attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", attempts)
	}
}

func TestResolveLocatorWithRetryExhaustsAndReturnsLastError(t *testing.T) {
	wantErr := errors.New("locator not found")
	attempts := 0
	ok, err := ResolveLocatorWithRetry(context.Background(), func() (bool, error) {
		attempts++
		return false, wantErr
	}, 3, time.Millisecond)
	if ok {
		t.Fatalf("expected failure")
	}
	if err != wantErr {
		t.Fatalf("expected last error to surface, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", attempts)
	}
}
