package navagent

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ModePage is the minimal page surface human hand-off polling needs:
// reading back a page-global flag, and waiting for a fresh navigation to
// settle once one is detected mid-poll.
type ModePage interface {
	EvaluateMode(ctx context.Context) (ModeValue, error)
	WaitForLoad() error
}

// ModeValue is the tri-state result of reading the page's automation
// mode flag, standing in for window.surfariMode's untyped JS value:
// absent (the flag was removed entirely), truthy (manually re-enabled),
// or falsy (still paused, keep polling).
type ModeValue int

const (
	ModeAbsent ModeValue = iota
	ModeEnabled
	ModeDisabled
)

// ErrNavigationDuringPoll signals the page navigated while polling was
// in flight (Playwright's "Execution context was destroyed"), which the
// original treats identically to a resumed flag: the agent should
// continue.
var ErrNavigationDuringPoll = fmt.Errorf("navagent: navigation occurred while polling for human resume")

// HandoffPollInterval mirrors the original's 1-second polling cadence.
const HandoffPollInterval = 1 * time.Second

// defaultHandoffPolls mirrors the original's hil_polling_times default.
const defaultHandoffPolls = 60

// ApprovalDecision is the two-value result vocabulary PollForHumanResume
// reports: allowed to resume, or denied (poll budget exhausted).
type ApprovalDecision string

const (
	ApprovalAllowed ApprovalDecision = "allowed"
	ApprovalDenied  ApprovalDecision = "denied"
)

// PollForHumanResume waits for a human to complete a manual step on the
// page, polling ModePage.EvaluateMode once per interval, reporting the
// result vocabulary above: ApprovalAllowed means the agent
// should resume (the flag disappeared,
// was manually re-enabled, or the page navigated mid-poll — the original
// treats all three as "continue"); ApprovalDenied means the poll budget
// was exhausted with no sign of resumption, so the task should abort.
// There is no pending value: polling only returns once it either
// resolves or times out. interval is normally HandoffPollInterval; tests
// pass a shorter one so exercising the retry path doesn't take seconds.
func PollForHumanResume(ctx context.Context, page ModePage, maxPolls int, interval time.Duration) (ApprovalDecision, error) {
	if maxPolls <= 0 {
		maxPolls = defaultHandoffPolls
	}
	if interval <= 0 {
		interval = HandoffPollInterval
	}

	for remaining := maxPolls; remaining > 0; remaining-- {
		mode, err := page.EvaluateMode(ctx)
		if err != nil {
			if err == ErrNavigationDuringPoll {
				if waitErr := page.WaitForLoad(); waitErr != nil {
					return ApprovalDenied, fmt.Errorf("navagent: wait for load after navigation: %w", waitErr)
				}
				return ApprovalAllowed, nil
			}
			return ApprovalDenied, fmt.Errorf("navagent: evaluate automation mode: %w", err)
		}

		switch mode {
		case ModeAbsent, ModeEnabled:
			return ApprovalAllowed, nil
		}

		select {
		case <-ctx.Done():
			return ApprovalDenied, ctx.Err()
		case <-time.After(interval):
		}
	}

	return ApprovalDenied, fmt.Errorf("navagent: timed out waiting for human to resume")
}

// isApproved reports whether a poll decision means the agent should
// resume driving the page.
func isApproved(decision ApprovalDecision) bool {
	return decision == ApprovalAllowed
}

// evaluatingPage is the minimal surface NewModePage needs from Page:
// raw script evaluation plus the load wait used after a detected
// navigation.
type evaluatingPage interface {
	Evaluate(ctx context.Context, script string, out any) error
	WaitForLoad() error
}

// modePageAdapter turns a full Page into a ModePage by evaluating the
// page's automation-mode flag through the generic Evaluate hook,
// translating a destroyed-execution-context error (the page navigated
// mid-evaluation) into ErrNavigationDuringPoll.
type modePageAdapter struct {
	page evaluatingPage
}

// NewModePage adapts any page exposing Evaluate/WaitForLoad into the
// ModePage interface PollForHumanResume needs.
func NewModePage(page evaluatingPage) ModePage {
	return modePageAdapter{page: page}
}

func (m modePageAdapter) EvaluateMode(ctx context.Context) (ModeValue, error) {
	var raw any
	if err := m.page.Evaluate(ctx, "() => window.surfariMode", &raw); err != nil {
		if strings.Contains(err.Error(), "Execution context was destroyed") {
			return 0, ErrNavigationDuringPoll
		}
		return 0, err
	}

	switch v := raw.(type) {
	case nil:
		return ModeAbsent, nil
	case bool:
		if v {
			return ModeEnabled, nil
		}
		return ModeDisabled, nil
	default:
		return ModeEnabled, nil
	}
}

func (m modePageAdapter) WaitForLoad() error { return m.page.WaitForLoad() }
