package navagent

import (
	"context"
	"testing"
	"time"
)

type sequenceModePage struct {
	modes       []ModeValue
	errs        []error
	idx         int
	waitForLoad int
}

func (p *sequenceModePage) EvaluateMode(context.Context) (ModeValue, error) {
	i := p.idx
	p.idx++
	if i < len(p.errs) && p.errs[i] != nil {
		return 0, p.errs[i]
	}
	return p.modes[i], nil
}

func (p *sequenceModePage) WaitForLoad() error {
	p.waitForLoad++
	return nil
}

const testPollInterval = time.Millisecond

func TestPollForHumanResumeFlagDisappeared(t *testing.T) {
	page := &sequenceModePage{modes: []ModeValue{ModeAbsent}, errs: []error{nil}}
	decision, err := PollForHumanResume(context.Background(), page, 5, testPollInterval)
	if err != nil {
		t.Fatalf("PollForHumanResume: %v", err)
	}
	if decision != ApprovalAllowed {
		t.Fatalf("expected allowed, got %v", decision)
	}
}

func TestPollForHumanResumeManuallyReenabled(t *testing.T) {
	page := &sequenceModePage{modes: []ModeValue{ModeDisabled, ModeDisabled, ModeEnabled}, errs: []error{nil, nil, nil}}
	decision, err := PollForHumanResume(context.Background(), page, 5, testPollInterval)
	if err != nil {
		t.Fatalf("PollForHumanResume: %v", err)
	}
	if decision != ApprovalAllowed {
		t.Fatalf("expected allowed, got %v", decision)
	}
}

func TestPollForHumanResumeNavigationMidPoll(t *testing.T) {
	page := &sequenceModePage{modes: []ModeValue{0}, errs: []error{ErrNavigationDuringPoll}}
	decision, err := PollForHumanResume(context.Background(), page, 5, testPollInterval)
	if err != nil {
		t.Fatalf("PollForHumanResume: %v", err)
	}
	if decision != ApprovalAllowed {
		t.Fatalf("expected allowed after navigation, got %v", decision)
	}
	if page.waitForLoad != 1 {
		t.Fatalf("expected WaitForLoad called once after navigation, got %d", page.waitForLoad)
	}
}

func TestPollForHumanResumeTimesOut(t *testing.T) {
	page := &sequenceModePage{
		modes: []ModeValue{ModeDisabled, ModeDisabled, ModeDisabled},
		errs:  []error{nil, nil, nil},
	}
	decision, err := PollForHumanResume(context.Background(), page, 3, testPollInterval)
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if decision != ApprovalDenied {
		t.Fatalf("expected denied on timeout, got %v", decision)
	}
}
