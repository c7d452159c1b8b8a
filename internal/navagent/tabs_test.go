package navagent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/haasonsaas/surfari-go/pkg/models"
)

var errBack = errors.New("go back failed")

// fakeTabPage implements the full Page interface with no-op stubs beyond
// the handful of methods TabSet and HandlePageLevelAction actually
// exercise; TabSet tracks Page rather than a narrower interface so a
// promoted background tab always has the full page surface available.
type fakeTabPage struct {
	url          string
	backCalled   bool
	dismissCalls int
	closed       bool
	backErr      error
}

func (f *fakeTabPage) URL() string                                                 { return f.url }
func (f *fakeTabPage) Evaluate(ctx context.Context, script string, out any) error   { return nil }
func (f *fakeTabPage) Goto(url string) error                                       { return nil }
func (f *fakeTabPage) WaitForLoad() error                                          { return nil }
func (f *fakeTabPage) Click(xpath string) error                                    { return nil }
func (f *fakeTabPage) Fill(xpath, value string) error                              { return nil }
func (f *fakeTabPage) SelectOption(xpath, value string) error                      { return nil }
func (f *fakeTabPage) SetChecked(xpath string, checked bool) error                 { return nil }
func (f *fakeTabPage) Scroll(xpath string, dx, dy float64) error                   { return nil }
func (f *fakeTabPage) Content() (string, error)                                    { return "", nil }
func (f *fakeTabPage) Screenshot() ([]byte, error)                                 { return nil, nil }
func (f *fakeTabPage) WaitForSelector(xpath string, timeout time.Duration) error   { return nil }
func (f *fakeTabPage) GoBack() error {
	f.backCalled = true
	return f.backErr
}
func (f *fakeTabPage) DismissModal() error {
	f.dismissCalls++
	return nil
}
func (f *fakeTabPage) Close() error {
	f.closed = true
	return nil
}

func noSleep(time.Duration) {}

func TestTabSetAppendPopupSwitchesWorkingTab(t *testing.T) {
	main := &fakeTabPage{url: "https://a"}
	popup := &fakeTabPage{url: "https://b"}
	ts := NewTabSet(main)
	ts.AppendPopup(popup)
	if ts.Current() != popup {
		t.Fatalf("expected working tab to switch to the popup")
	}
	if ts.Count() != 2 {
		t.Fatalf("expected 2 tracked tabs, got %d", ts.Count())
	}
}

func TestTabSetCloseCurrentPromotesLastRemaining(t *testing.T) {
	main := &fakeTabPage{url: "https://a"}
	popup := &fakeTabPage{url: "https://b"}
	ts := NewTabSet(main)
	ts.AppendPopup(popup)

	promoted, err := ts.CloseCurrent()
	if err != nil {
		t.Fatalf("CloseCurrent: %v", err)
	}
	if !popup.closed {
		t.Fatalf("expected the closed tab to have Close called")
	}
	if promoted != main || ts.Current() != main {
		t.Fatalf("expected main tab promoted after closing popup")
	}
	if ts.Count() != 1 {
		t.Fatalf("expected 1 remaining tab, got %d", ts.Count())
	}
}

func TestTabSetCloseCurrentWithNoneRemaining(t *testing.T) {
	main := &fakeTabPage{url: "https://a"}
	ts := NewTabSet(main)
	promoted, err := ts.CloseCurrent()
	if err != nil {
		t.Fatalf("CloseCurrent: %v", err)
	}
	if promoted != nil || ts.Current() != nil {
		t.Fatalf("expected no working tab once the only tab closes")
	}
}

func TestHandlePageLevelActionBack(t *testing.T) {
	page := &fakeTabPage{}
	ts := NewTabSet(page)
	result, err := HandlePageLevelAction(context.Background(), ts, models.ExecBack, noSleep)
	if err != nil {
		t.Fatalf("HandlePageLevelAction: %v", err)
	}
	if !result.Handled || !page.backCalled {
		t.Fatalf("expected BACK to be handled and GoBack called")
	}
	if result.SyntheticText != "I went back to the previous page." {
		t.Fatalf("unexpected synthetic text: %q", result.SyntheticText)
	}
}

func TestHandlePageLevelActionDismissModal(t *testing.T) {
	page := &fakeTabPage{}
	ts := NewTabSet(page)
	result, err := HandlePageLevelAction(context.Background(), ts, models.ExecDismissModal, noSleep)
	if err != nil {
		t.Fatalf("HandlePageLevelAction: %v", err)
	}
	if !result.Handled || page.dismissCalls != 1 {
		t.Fatalf("expected DISMISS_MODAL to call DismissModal once")
	}
}

func TestHandlePageLevelActionWait(t *testing.T) {
	ts := NewTabSet(&fakeTabPage{})
	result, err := HandlePageLevelAction(context.Background(), ts, models.ExecWait, noSleep)
	if err != nil {
		t.Fatalf("HandlePageLevelAction: %v", err)
	}
	if !result.Handled || result.SyntheticText != "I waited 2.00 more seconds for the page to load." {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestHandlePageLevelActionCloseCurrentTab(t *testing.T) {
	main := &fakeTabPage{}
	popup := &fakeTabPage{}
	ts := NewTabSet(main)
	ts.AppendPopup(popup)

	result, err := HandlePageLevelAction(context.Background(), ts, models.ExecCloseCurrentTab, noSleep)
	if err != nil {
		t.Fatalf("HandlePageLevelAction: %v", err)
	}
	if !result.Handled || !popup.closed {
		t.Fatalf("expected the working tab to be closed")
	}
	if ts.Current() != main {
		t.Fatalf("expected main tab promoted after closing")
	}
}

func TestHandlePageLevelActionUnrecognizedIsNotHandled(t *testing.T) {
	ts := NewTabSet(&fakeTabPage{})
	result, err := HandlePageLevelAction(context.Background(), ts, models.ExecSuccess, noSleep)
	if err != nil {
		t.Fatalf("HandlePageLevelAction: %v", err)
	}
	if result.Handled {
		t.Fatalf("expected SUCCESS not to be treated as a page-level action")
	}
}

func TestHandlePageLevelActionBackPropagatesError(t *testing.T) {
	page := &fakeTabPage{backErr: errBack}
	ts := NewTabSet(page)
	_, err := HandlePageLevelAction(context.Background(), ts, models.ExecBack, noSleep)
	if err == nil {
		t.Fatalf("expected error to propagate")
	}
}
