// Package actionexec implements the Page Action Executor (C10): it walks
// an ordered list of resolved LLMSteps against a live page, dispatching
// each by action kind, watching fills for layout-changing side effects,
// and stopping the turn early on an expandable element or a page-level
// scroll.
package actionexec

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/surfari-go/pkg/models"
)

// ErrorKind classifies why a step failed, per the failure taxonomy in
// spec.md §4.10. Every kind is recoverable by the outer navigation loop;
// only the loop's own max-turns bound is fatal.
type ErrorKind string

const (
	ErrNoLocator      ErrorKind = "NoLocator"
	ErrNotInteractable ErrorKind = "NotInteractable"
	ErrDisabled       ErrorKind = "Disabled"
	ErrTimeout        ErrorKind = "Timeout"
	ErrUnsupported    ErrorKind = "Unsupported"
	ErrGeneric        ErrorKind = "Generic"
)

// StepError reports a classified step failure.
type StepError struct {
	Kind    ErrorKind
	Message string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

const clickTimeout = 2 * time.Second
const resultTruncateLen = 200

// PageActuator is the slice of internal/browser.Page the executor needs.
// Defined locally so this package never imports internal/browser.
type PageActuator interface {
	Evaluate(ctx context.Context, script string, out any) error
	Click(xpath string) error
	Fill(xpath, value string) error
	SelectOption(xpath, value string) error
	SetChecked(xpath string, checked bool) error
	Scroll(xpath string, dx, dy float64) error
	GoBack() error
	DismissModal() error
	WaitForSelector(xpath string, timeout time.Duration) error
}

// Executor runs LLMStep lists against a page.
type Executor struct {
	page    PageActuator
	index   *models.LocatorIndex
	errors  int
}

// New builds an Executor bound to one page and its current locator index.
// A fresh Executor is created each turn, since the index is rebuilt every
// distillation pass.
func New(page PageActuator, index *models.LocatorIndex) *Executor {
	return &Executor{page: page, index: index}
}

// ErrorCount reports how many steps in this turn resulted in an error.
func (e *Executor) ErrorCount() int { return e.errors }

// Run executes steps in order, filling in each step's Result, and returns
// the (possibly truncated) executed slice. Execution stops early when a
// step is marked IsExpandable, when a fill's expansion watch detects a
// layout change, or when a page-level scroll consumes the whole turn.
func (e *Executor) Run(ctx context.Context, steps []models.LLMStep) []models.LLMStep {
	executed := make([]models.LLMStep, 0, len(steps))
	for _, step := range steps {
		result := e.runStep(ctx, &step)
		step.Result = truncate(result)
		executed = append(executed, step)

		if step.Action == models.ActionScroll && strings.EqualFold(step.Target, "page") {
			break
		}
		if step.IsExpandable {
			break
		}
		if strings.Contains(step.Result, "page layout changed") {
			break
		}
	}
	return executed
}

func (e *Executor) runStep(ctx context.Context, step *models.LLMStep) string {
	if step.Action == models.ActionScroll && strings.EqualFold(step.Target, "page") {
		return e.doScroll(step)
	}
	xpath, err := e.resolve(step)
	if err != nil {
		e.errors++
		return errString(err)
	}

	if disabled, err := e.isDisabled(ctx, xpath); err != nil {
		e.errors++
		return errString(err)
	} else if disabled {
		e.errors++
		return errString(&StepError{Kind: ErrDisabled, Message: "element is disabled"})
	}

	if err := e.page.WaitForSelector(xpath, clickTimeout); err != nil {
		// non-fatal: element may already be visible; continue to dispatch
	}

	switch step.Action {
	case models.ActionClick:
		return e.doClick(xpath)
	case models.ActionFill:
		return e.doFill(ctx, xpath, step.Value)
	case models.ActionSelect:
		return e.doSelect(xpath, step.Value)
	case models.ActionCheck:
		return e.doSetChecked(xpath, true)
	case models.ActionUncheck:
		return e.doSetChecked(xpath, false)
	case models.ActionScroll:
		return e.doScroll(step)
	case models.ActionRun:
		return "success"
	default:
		e.errors++
		return errString(&StepError{Kind: ErrUnsupported, Message: string(step.Action)})
	}
}

func (e *Executor) resolve(step *models.LLMStep) (string, error) {
	if step.Locator == nil || step.Locator.Token == "" {
		return "", &StepError{Kind: ErrNoLocator, Message: "step carries no locator token"}
	}
	entry, ok := e.index.Get(step.Locator.Token)
	if !ok {
		return "", &StepError{Kind: ErrNoLocator, Message: fmt.Sprintf("unresolved token %q", step.Locator.Token)}
	}
	if entry.XPath == "" {
		return "", &StepError{Kind: ErrNoLocator, Message: fmt.Sprintf("token %q has no xpath", step.Locator.Token)}
	}
	return entry.XPath, nil
}

func (e *Executor) isDisabled(ctx context.Context, xpath string) (bool, error) {
	var disabled bool
	script := fmt.Sprintf(
		"(() => { const el = document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue; return !!(el && (el.disabled || el.getAttribute('aria-disabled') === 'true')); })()",
		jsonQuote(xpath),
	)
	if err := e.page.Evaluate(ctx, script, &disabled); err != nil {
		return false, &StepError{Kind: ErrGeneric, Message: err.Error()}
	}
	return disabled, nil
}

func (e *Executor) doClick(xpath string) string {
	if err := e.page.Click(xpath); err != nil {
		e.errors++
		return errString(&StepError{Kind: ErrNotInteractable, Message: err.Error()})
	}
	return "success"
}

func (e *Executor) doFill(ctx context.Context, xpath, value string) string {
	before, err := e.expansionSnapshot(ctx, xpath)
	if err != nil {
		e.errors++
		return errString(err)
	}

	if err := e.page.Click(xpath); err != nil {
		e.errors++
		return errString(&StepError{Kind: ErrNotInteractable, Message: err.Error()})
	}
	if err := e.page.Fill(xpath, value); err != nil {
		e.errors++
		return errString(&StepError{Kind: ErrNotInteractable, Message: err.Error()})
	}

	after, err := e.expansionSnapshot(ctx, xpath)
	if err != nil {
		// snapshot failure after a successful fill is not itself a step error
		return "success"
	}
	if after.layoutChanged(before) {
		return "success with note: page layout changed; re-evaluate"
	}
	return "success"
}

func (e *Executor) doSelect(xpath, value string) string {
	if err := e.page.SelectOption(xpath, value); err != nil {
		e.errors++
		return errString(&StepError{Kind: ErrNotInteractable, Message: err.Error()})
	}
	return "success"
}

func (e *Executor) doSetChecked(xpath string, checked bool) string {
	if err := e.page.SetChecked(xpath, checked); err != nil {
		e.errors++
		return errString(&StepError{Kind: ErrNotInteractable, Message: err.Error()})
	}
	return "success"
}

func (e *Executor) doScroll(step *models.LLMStep) string {
	var xpath string
	dy := 600.0
	if strings.EqualFold(step.Value, "up") || strings.EqualFold(step.Value, "top") {
		dy = -600.0
	}
	if !strings.EqualFold(step.Target, "page") {
		if step.Locator == nil {
			e.errors++
			return errString(&StepError{Kind: ErrNoLocator, Message: "scroll target has no locator"})
		}
		entry, ok := e.index.Get(step.Locator.Token)
		if !ok {
			e.errors++
			return errString(&StepError{Kind: ErrNoLocator, Message: "scroll target has no locator"})
		}
		xpath = entry.XPath
	}
	if err := e.page.Scroll(xpath, 0, dy); err != nil {
		e.errors++
		return errString(&StepError{Kind: ErrGeneric, Message: err.Error()})
	}
	return "success"
}

// expansionState is the before/after observation bracket spec.md §GLOSSARY
// calls the expansion watch: a DOM element count plus the nearest
// ARIA-relevant ancestor/self/descendant's expansion attributes.
type expansionState struct {
	elementCount int
	popupPresent bool
	ariaExpanded string
}

func (a expansionState) layoutChanged(b expansionState) bool {
	if a.popupPresent && !b.popupPresent {
		return true
	}
	if a.elementCount-b.elementCount > 40 {
		return true
	}
	if b.ariaExpanded == "false" && a.ariaExpanded == "true" {
		return true
	}
	return false
}

func (e *Executor) expansionSnapshot(ctx context.Context, xpath string) (expansionState, error) {
	var raw struct {
		ElementCount int    `json:"elementCount"`
		PopupPresent bool   `json:"popupPresent"`
		AriaExpanded string `json:"ariaExpanded"`
	}
	script := fmt.Sprintf(`(() => {
		const el = document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		let ariaExpanded = "";
		let node = el;
		while (node && ariaExpanded === "") {
			if (node.hasAttribute && node.hasAttribute("aria-expanded")) {
				ariaExpanded = node.getAttribute("aria-expanded") || "";
			}
			node = node.parentElement;
		}
		const popup = document.querySelector('[role="dialog"], [role="listbox"], [aria-haspopup="true"][aria-expanded="true"]');
		return {
			elementCount: document.getElementsByTagName("*").length,
			popupPresent: !!popup,
			ariaExpanded: ariaExpanded,
		};
	})()`, jsonQuote(xpath))

	if err := e.page.Evaluate(ctx, script, &raw); err != nil {
		return expansionState{}, &StepError{Kind: ErrGeneric, Message: err.Error()}
	}
	return expansionState{
		elementCount: raw.ElementCount,
		popupPresent: raw.PopupPresent,
		ariaExpanded: raw.AriaExpanded,
	}, nil
}

func errString(err error) string {
	return "Error: " + err.Error()
}

func truncate(s string) string {
	if len(s) <= resultTruncateLen {
		return s
	}
	return s[:resultTruncateLen] + "..."
}

func jsonQuote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
