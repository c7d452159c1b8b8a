package navagent

import (
	"context"
	"fmt"
	"time"

	"github.com/haasonsaas/surfari-go/pkg/models"
)

// TabSet tracks every open tab in the order it was opened, with the
// working tab the agent currently drives. Grounded on self.tabs /
// self.current_working_tab in the original, which are plain list/field
// state rather than anything structured; this factors that same state
// into its own type since the Go loop has no implicit "self". It
// tracks Page rather than a narrower interface because a closed or
// backgrounded tab still needs the full page surface once it is
// promoted back to the working tab.
type TabSet struct {
	tabs    []Page
	current Page
}

// NewTabSet seeds a tab set with its first page as the working tab.
func NewTabSet(first Page) *TabSet {
	return &TabSet{tabs: []Page{first}, current: first}
}

// AppendPopup records a newly opened popup tab and switches the working
// tab to it, matching handle_popup's behavior of following the new page.
func (ts *TabSet) AppendPopup(page Page) {
	ts.tabs = append(ts.tabs, page)
	ts.current = page
}

// Current returns the tab the agent is currently driving.
func (ts *TabSet) Current() Page { return ts.current }

// SetCurrent switches the working tab without adding it to the tracked
// set (used when sync-active-tab detects the user or page already
// changed focus to an already-tracked tab).
func (ts *TabSet) SetCurrent(page Page) { ts.current = page }

// CloseCurrent removes the working tab from the tracked set, closes it,
// and promotes the most recently opened remaining tab to be the new
// working tab. Grounded on CLOSE_CURRENT_TAB's self.tabs.remove(page) /
// self.tabs[-1] logic. Returns the newly promoted tab, or nil if none
// remain.
func (ts *TabSet) CloseCurrent() (Page, error) {
	closing := ts.current
	for i, t := range ts.tabs {
		if t == closing {
			ts.tabs = append(ts.tabs[:i], ts.tabs[i+1:]...)
			break
		}
	}
	if err := closing.Close(); err != nil {
		return nil, fmt.Errorf("navagent: close tab: %w", err)
	}
	if len(ts.tabs) == 0 {
		ts.current = nil
		return nil, nil
	}
	ts.current = ts.tabs[len(ts.tabs)-1]
	return ts.current, nil
}

// Count reports how many tabs are currently tracked.
func (ts *TabSet) Count() int { return len(ts.tabs) }

// PageLevelActionResult is the outcome of handling a page-level
// step_execution value: whether one was recognized, and the synthetic
// chat message the original appends to the transcript so the model sees
// what just happened on its next turn.
type PageLevelActionResult struct {
	Handled       bool
	SyntheticText string
}

// reasoningBoxDelay mirrors show_reasoning_box_duration's default: the
// agent waits this long after surfacing its reasoning on the page
// before acting, so a human watching the browser can read it.
const reasoningBoxDelay = 2 * time.Second

// HandlePageLevelAction performs BACK, DISMISS_MODAL, WAIT, and
// CLOSE_CURRENT_TAB, the four step_execution values that are fully
// resolved by acting on the page itself rather than by taking a
// model-specified step. Grounded on _handled_page_level_actions.
func HandlePageLevelAction(ctx context.Context, tabs *TabSet, exec models.StepExecution, sleep func(time.Duration)) (PageLevelActionResult, error) {
	page := tabs.Current()
	if sleep == nil {
		sleep = time.Sleep
	}

	switch exec {
	case models.ExecBack:
		sleep(reasoningBoxDelay)
		if err := page.GoBack(); err != nil {
			return PageLevelActionResult{}, fmt.Errorf("navagent: go back: %w", err)
		}
		return PageLevelActionResult{Handled: true, SyntheticText: "I went back to the previous page."}, nil

	case models.ExecDismissModal:
		sleep(reasoningBoxDelay)
		if err := page.DismissModal(); err != nil {
			return PageLevelActionResult{}, fmt.Errorf("navagent: dismiss modal: %w", err)
		}
		return PageLevelActionResult{Handled: true, SyntheticText: "I dismissed the modal."}, nil

	case models.ExecWait:
		const waitSeconds = 2.0
		sleep(time.Duration(waitSeconds * float64(time.Second)))
		return PageLevelActionResult{Handled: true, SyntheticText: fmt.Sprintf("I waited %.2f more seconds for the page to load.", waitSeconds)}, nil

	case models.ExecCloseCurrentTab:
		sleep(reasoningBoxDelay)
		if _, err := tabs.CloseCurrent(); err != nil {
			return PageLevelActionResult{}, err
		}
		return PageLevelActionResult{Handled: true, SyntheticText: "I closed the tab."}, nil

	default:
		return PageLevelActionResult{Handled: false}, nil
	}
}
