package replay

import (
	"context"
	"time"

	"github.com/haasonsaas/surfari-go/pkg/models"
)

// Player replays a recorded chat history turn by turn. The navigation
// loop consumes it instead of calling the model while it's armed, and
// falls back to a live model call once it disarms.
type Player struct {
	history []models.ChatMessage
	pos     int
	armed   bool
}

// NewPlayer starts a player over history, armed and at the first turn.
func NewPlayer(history []models.ChatMessage) *Player {
	return &Player{history: history, armed: len(history) > 0}
}

// Armed reports whether the player still has turns to offer.
func (p *Player) Armed() bool {
	return p.armed
}

// NextResponse returns the next recorded assistant turn, decoded as an
// LLMResponse, skipping over user/tool turns that sit between assistant
// turns in the recorded history. It disarms once it hands back a
// SUCCESS turn, or once the history runs out, matching spec.md §4.7's
// "consume recorded assistant messages FIFO, disarm on SUCCESS" rule.
func (p *Player) NextResponse() (*models.LLMResponse, bool, error) {
	if !p.armed {
		return nil, false, nil
	}
	for p.pos < len(p.history) {
		msg := p.history[p.pos]
		p.pos++
		if msg.Kind != models.ChatMessageAssistantText {
			continue
		}
		resp, err := decodeResponse(msg)
		if err != nil {
			p.armed = false
			return nil, false, err
		}
		if resp.StepExecution == models.ExecSuccess || p.pos >= len(p.history) {
			p.armed = false
		}
		return resp, true, nil
	}
	p.armed = false
	return nil, false, nil
}

// Disarm forces the player to stop supplying recorded turns, for use
// when a replayed step fails to execute against the live page and the
// caller is falling back to a fresh model call mid-task.
func (p *Player) Disarm() {
	p.armed = false
}

// LocatorAttempt resolves a single replayed step's target against the
// current page, reporting whether it succeeded.
type LocatorAttempt func() (bool, error)

// ResolveLocatorWithRetry retries attempt up to maxAttempts times with
// delay between tries, matching the original implementation's policy of
// giving a replayed step's locator three chances (with a short pause to
// let the page settle) before the caller gives up on replay for this
// step and falls back to a live model turn.
func ResolveLocatorWithRetry(ctx context.Context, attempt LocatorAttempt, maxAttempts int, delay time.Duration) (bool, error) {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if delay <= 0 {
		delay = time.Second
	}

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		ok, err := attempt()
		if err != nil {
			lastErr = err
		} else if ok {
			return true, nil
		}
		if i == maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(delay):
		}
	}
	return false, lastErr
}
