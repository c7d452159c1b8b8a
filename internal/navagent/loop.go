package navagent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/surfari-go/internal/actionexec"
	"github.com/haasonsaas/surfari-go/internal/distill"
	"github.com/haasonsaas/surfari-go/internal/modelclient"
	"github.com/haasonsaas/surfari-go/internal/replay"
	"github.com/haasonsaas/surfari-go/internal/resolver"
	"github.com/haasonsaas/surfari-go/internal/toolfabric"
	"github.com/haasonsaas/surfari-go/pkg/models"
)

// Page is the page surface the navigation loop drives: distillation,
// step execution, and tab control all fold into this one method set.
// Defined locally so this package never imports internal/browser;
// *browser.Page satisfies it structurally.
type Page interface {
	URL() string
	Evaluate(ctx context.Context, script string, out any) error
	Goto(url string) error
	WaitForLoad() error
	Click(xpath string) error
	Fill(xpath, value string) error
	SelectOption(xpath, value string) error
	SetChecked(xpath string, checked bool) error
	Scroll(xpath string, dx, dy float64) error
	GoBack() error
	DismissModal() error
	Content() (string, error)
	Screenshot() ([]byte, error)
	WaitForSelector(xpath string, timeout time.Duration) error
	Close() error
}

// ModelCaller sends one turn's prompt to a vendor model. Satisfied by
// *modelclient.Client.
type ModelCaller interface {
	Complete(ctx context.Context, vendor string, req modelclient.Request) (modelclient.Result, error)
}

// ToolExecutor dispatches one tool_calls turn's calls, standing in for
// the original's merged native-tools-plus-MCP-registry dispatch.
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, call models.ToolCall) (result string, err error)
}

// Config bundles everything one navigation task needs beyond the page
// itself. Most fields are optional: a nil value disables that feature
// (no replay, no OTP handling, no delegation, no stats) the same way an
// unset constructor argument does in the original, rather than erroring.
type Config struct {
	Name          string
	SiteID        int64
	SiteName      string
	Vendor        string
	Model         string
	ReviewerModel string
	SystemPrompt  string
	Goal          string

	EnableDataMasking bool
	MaxTurns          int
	MaxLocatorErrors  int

	// SaveSuccessfulTaskOnly gates whether a failed run's history is kept
	// in the replay store (spec.md §4.7). A successful run is always
	// saved at task completion; this only controls failed/handed-off runs.
	SaveSuccessfulTaskOnly bool

	Caller    ModelCaller
	Tools     ToolExecutor
	ToolDecls []toolfabric.Declaration

	Distiller  *distill.Distiller
	Resolver   *resolver.Chain
	Credential *models.SiteCredential

	OTPFetcher      OTPFetcher
	DelegationSites DelegationSiteIndex
	SubAgents       SubAgentRunner

	// Judge, when set, reviews SUCCESS and DELEGATE_TO_USER turns before
	// they take effect. Nil skips review entirely, accepting the model's
	// own verdict as final.
	Judge ReviewJudge

	Stats *StatsStore
	Rates map[string]ModelRates

	Replay *replay.Session
}

func (c *Config) maxTurns() int {
	if c.MaxTurns > 0 {
		return c.MaxTurns
	}
	return 35
}

func (c *Config) maxLocatorErrors() int {
	if c.MaxLocatorErrors > 0 {
		return c.MaxLocatorErrors
	}
	return 5
}

// Agent drives one task to completion on one page, turn by turn,
// dispatching on step_execution the way _navigation_agent.py's run()
// does. Construct with NewAgent; call Run once per task.
type Agent struct {
	cfg     Config
	tabs    *TabSet
	history []models.ChatMessage

	totalErrors int
	usingReplay bool
	hadLiveTurn bool
	player      *replay.Player
}

// NewAgent wires a Config to an initial page, ready to run one task.
func NewAgent(cfg Config, initialPage Page) *Agent {
	return &Agent{cfg: cfg, tabs: NewTabSet(initialPage)}
}

// TurnEvent is one unit of progress streamed out of Run: either a
// synthetic chat message worth surfacing to a caller watching the task
// live, or the final outcome.
type TurnEvent struct {
	Message string
	Final   *Outcome
	Err     error
}

// Outcome is the task's final result: either a completed answer or a
// classified reason the task stopped short of one.
type Outcome struct {
	Answer    string
	Succeeded bool
	Handoff   bool
}

// Run drives the task to completion, streaming progress through the
// returned channel. The channel is closed once the task finishes, errors
// fatally, or MaxTurns is exhausted.
func (a *Agent) Run(ctx context.Context, task string) <-chan *TurnEvent {
	events := make(chan *TurnEvent, 8)
	go func() {
		defer close(events)
		a.history = append(a.history, models.NewUserMessage(task))

		if a.cfg.Replay != nil {
			result, err := a.cfg.Replay.AttemptLoad(ctx)
			if err == nil && result.Loaded {
				a.history = result.ChatHistory
				a.usingReplay = true
				a.player = replay.NewPlayer(a.history)
			}
		}

		for turn := 0; turn < a.cfg.maxTurns(); turn++ {
			outcome, msg, err := a.runTurn(ctx)
			if msg != "" {
				events <- &TurnEvent{Message: msg}
			}
			// A non-nil outcome always ends the task, whether or not it
			// came paired with an error (e.g. a hand-off that timed out
			// still carries a classified Outcome{Handoff: true}).
			if outcome != nil {
				a.saveOnCompletion(ctx, *outcome)
				if err != nil {
					events <- &TurnEvent{Err: err}
				}
				events <- &TurnEvent{Final: outcome}
				return
			}
			if err != nil {
				events <- &TurnEvent{Err: err}
				if isFatal(err) {
					return
				}
				continue
			}
		}
		exhausted := Outcome{Succeeded: false, Answer: "max turns exhausted"}
		a.saveOnCompletion(ctx, exhausted)
		events <- &TurnEvent{Final: &exhausted}
	}()
	return events
}

func isFatal(err error) bool {
	te, ok := err.(*TurnError)
	return ok && te.Kind == ErrKindFatal
}

// runTurn executes one full turn of the state machine and returns a
// non-nil Outcome only when the task is finished (success or
// irrecoverable hand-off exhaustion).
func (a *Agent) runTurn(ctx context.Context) (*Outcome, string, error) {
	page := a.tabs.Current()
	if page == nil {
		return nil, "", &TurnError{Kind: ErrKindFatal, Err: fmt.Errorf("no working tab")}
	}

	if err := page.WaitForLoad(); err != nil {
		return nil, "", &TurnError{Kind: ErrKindPage, Err: err}
	}

	result, err := a.cfg.Distiller.Distill(ctx, page, a.cfg.Goal, a.cfg.EnableDataMasking)
	if err != nil {
		return nil, "", &TurnError{Kind: ErrKindPage, Err: err}
	}

	resp, fromReplay, usage, err := a.nextResponse(ctx, result)
	if err != nil {
		return nil, "", &TurnError{Kind: ErrKindModel, Err: err}
	}

	a.history = append(a.history, models.NewAssistantTextMessage(maskedResponseText(resp)))
	if result.MaskMap != nil {
		unmaskResponse(resp, result.MaskMap)
	}

	if !fromReplay {
		a.hadLiveTurn = true
	}
	outcome, msg, terr := a.dispatch(ctx, page, resp, result)

	if a.cfg.Stats != nil && !fromReplay {
		record := UsageRecord{
			Model:                a.cfg.Model,
			Purpose:              fmt.Sprintf("NavigationAgent-%s", a.cfg.SiteName),
			PromptTokenCount:     usage.Prompt,
			CandidatesTokenCount: usage.Completion,
		}
		_ = a.cfg.Stats.InsertRunStats(ctx, []UsageRecord{record}, a.cfg.Rates)
	}

	return outcome, msg, terr
}

// saveOnCompletion persists the run's chat history once the task has
// finished, following spec.md §4.7's save protocol: a successful run is
// always saved; a failed or handed-off run is saved only when
// SaveSuccessfulTaskOnly is false. A run that never produced a live model
// turn (it resolved entirely from a loaded replay, unchanged) isn't
// rewritten back to the store.
func (a *Agent) saveOnCompletion(ctx context.Context, outcome Outcome) {
	if a.cfg.Replay == nil || !a.hadLiveTurn {
		return
	}
	if a.cfg.SaveSuccessfulTaskOnly && !outcome.Succeeded {
		return
	}
	_, _ = a.cfg.Replay.Save(ctx, a.history)
}

func (a *Agent) nextResponse(ctx context.Context, distilled *distill.Result) (*models.LLMResponse, bool, models.TokenUsage, error) {
	if a.usingReplay {
		resp, ok, err := a.player.NextResponse()
		if err != nil || !ok {
			a.usingReplay = false
		} else {
			return resp, true, models.TokenUsage{}, nil
		}
	}

	a.history = append(a.history, models.NewUserMessage(navigationUserPrompt(distilled.Text)))

	req := modelclient.Request{
		System:  a.cfg.SystemPrompt,
		History: a.history,
		Tools:   a.cfg.ToolDecls,
		Model:   a.cfg.Model,
		Purpose: fmt.Sprintf("NavigationAgent-%s", a.cfg.SiteName),
		SiteID:  fmt.Sprintf("%d", a.cfg.SiteID),
	}
	completion, err := a.cfg.Caller.Complete(ctx, a.cfg.Vendor, req)
	if err != nil {
		return nil, false, models.TokenUsage{}, err
	}
	if completion.Text == "" && len(completion.ToolCalls) > 0 {
		return &models.LLMResponse{ToolCalls: completion.ToolCalls}, false, completion.Usage, nil
	}

	var resp models.LLMResponse
	if err := json.Unmarshal([]byte(completion.Text), &resp); err != nil {
		return nil, false, completion.Usage, fmt.Errorf("navagent: decode model response: %w", err)
	}
	return &resp, false, completion.Usage, nil
}

func maskedResponseText(resp *models.LLMResponse) string {
	encoded, err := json.Marshal(resp)
	if err != nil {
		return resp.Reasoning
	}
	return string(encoded)
}

func unmaskResponse(resp *models.LLMResponse, mm *distill.MaskMap) {
	resp.Reasoning = mm.Unmask(resp.Reasoning)
	resp.Answer = mm.Unmask(resp.Answer)
	steps := resp.AllSteps()
	for i := range steps {
		steps[i].Value = mm.Unmask(steps[i].Value)
		steps[i].Target = mm.Unmask(steps[i].Target)
	}
}

// dispatch implements the step_execution switch at the heart of the
// state diagram. distilled is the same distill.Result the turn's prompt
// was built from, reused by dispatchSteps so step targets are located
// against the exact locator map the model saw rather than a fresh DOM walk.
func (a *Agent) dispatch(ctx context.Context, page Page, resp *models.LLMResponse, distilled *distill.Result) (*Outcome, string, error) {
	if resp.HasToolCalls() {
		return a.dispatchToolCalls(ctx, resp)
	}

	switch resp.StepExecution {
	case models.ExecSuccess:
		return a.dispatchSuccess(ctx, page, resp)

	case models.ExecWait, models.ExecBack, models.ExecDismissModal, models.ExecCloseCurrentTab:
		result, err := HandlePageLevelAction(ctx, a.tabs, resp.StepExecution, nil)
		if err != nil {
			return nil, "", &TurnError{Kind: ErrKindPage, Err: err}
		}
		a.history = append(a.history, models.NewUserMessage(result.SyntheticText))
		return nil, result.SyntheticText, nil

	case models.ExecDelegateToUser:
		return a.dispatchDelegateToUser(ctx, page, resp)

	case models.ExecDelegateToAgent:
		if a.cfg.SubAgents == nil {
			a.history = append(a.history, models.NewUserMessage("Delegation to another agent is not configured."))
			return nil, "Delegation to another agent is not configured.", nil
		}
		messages := HandleDelegateToAgent(ctx, a.cfg.SubAgents, a.cfg.DelegationSites, resp.AllSteps())
		for _, m := range messages {
			a.history = append(a.history, models.NewUserMessage(m))
		}
		return nil, strings.Join(messages, " "), nil

	default:
		return a.dispatchSteps(ctx, page, resp, distilled)
	}
}

func (a *Agent) dispatchToolCalls(ctx context.Context, resp *models.LLMResponse) (*Outcome, string, error) {
	a.history = append(a.history, models.NewAssistantToolCallsMessage(resp.ToolCalls))
	if a.cfg.Tools == nil {
		for _, call := range resp.ToolCalls {
			a.history = append(a.history, models.NewToolMessage(call.Name, call.ID, `{"error":"no tool executor configured"}`))
		}
		return nil, "", nil
	}
	for _, call := range resp.ToolCalls {
		result, err := a.cfg.Tools.ExecuteTool(ctx, call)
		if err != nil {
			result = fmt.Sprintf(`{"error":%q}`, err.Error())
		}
		a.history = append(a.history, models.NewToolMessage(call.Name, call.ID, result))
	}
	return nil, "", nil
}

func (a *Agent) dispatchSuccess(ctx context.Context, page Page, resp *models.LLMResponse) (*Outcome, string, error) {
	if a.cfg.Judge == nil {
		return &Outcome{Succeeded: true, Answer: finalAnswer(resp)}, "", nil
	}
	content, err := page.Content()
	if err != nil {
		content = ""
	}
	outcome, err := ReviewSuccess(ctx, a.cfg.Judge, reviewSuccessSystemPrompt, navigationUserPrompt(content))
	if err != nil {
		return nil, "", &TurnError{Kind: ErrKindModel, Err: err}
	}
	if outcome.Accept {
		return &Outcome{Succeeded: true, Answer: finalAnswer(resp)}, "", nil
	}
	a.history = append(a.history, models.NewUserMessage(outcome.SyntheticText))
	return nil, outcome.SyntheticText, nil
}

func (a *Agent) dispatchDelegateToUser(ctx context.Context, page Page, resp *models.LLMResponse) (*Outcome, string, error) {
	if a.cfg.Judge != nil {
		content, _ := page.Content()
		outcome, err := ReviewDelegation(ctx, a.cfg.Judge, reviewDelegationSystemPrompt, navigationUserPrompt(content))
		if err != nil {
			return nil, "", &TurnError{Kind: ErrKindModel, Err: err}
		}
		if !outcome.Accept {
			a.history = append(a.history, models.NewUserMessage(outcome.SyntheticText))
			return nil, outcome.SyntheticText, nil
		}
	}

	modePage := NewModePage(page)
	decision, err := PollForHumanResume(ctx, modePage, 0, 0)
	if err != nil || !isApproved(decision) {
		return &Outcome{Succeeded: false, Handoff: true, Answer: resp.Reasoning}, "", &TurnError{Kind: ErrKindHandoff, Err: errOrTimeout(err)}
	}
	const resumedText = "I have completed the required actions; please continue with the task."
	a.history = append(a.history, models.NewUserMessage(resumedText))
	return nil, resumedText, nil
}

func (a *Agent) dispatchSteps(ctx context.Context, page Page, resp *models.LLMResponse, distilled *distill.Result) (*Outcome, string, error) {
	steps := resp.AllSteps()
	if len(steps) == 0 {
		return nil, "", nil
	}

	if a.cfg.Resolver != nil {
		rctx := resolver.Context{SiteID: a.cfg.SiteID, SiteName: a.cfg.SiteName, TaskGoal: a.cfg.Goal, CurrentURL: page.URL()}
		if err := a.cfg.Resolver.Resolve(ctx, resp, a.cfg.Credential, rctx); err != nil {
			return nil, "", &TurnError{Kind: ErrKindResolution, Err: err}
		}
		steps = resp.AllSteps()
		if resp.StepExecution == models.ExecDelegateToUser {
			return a.dispatchDelegateToUser(ctx, page, resp)
		}
	}

	if a.cfg.OTPFetcher != nil {
		if _, err := ApplyOTP(ctx, a.cfg.OTPFetcher, steps); err != nil {
			a.history = append(a.history, models.NewUserMessage("Please clear the second factor authentication manually."))
			modePage := NewModePage(page)
			decision, pollErr := PollForHumanResume(ctx, modePage, 0, 0)
			if pollErr != nil || !isApproved(decision) {
				return &Outcome{Succeeded: false, Handoff: true}, "", &TurnError{Kind: ErrKindHandoff, Err: errOrTimeout(pollErr)}
			}
			const resumedText = "I have completed the required actions; please continue with the task."
			a.history = append(a.history, models.NewUserMessage(resumedText))
			return nil, resumedText, nil
		}
	}

	resolved, err := LocateSteps(distilled.Index, steps)
	if err != nil {
		a.totalErrors++
		a.history = append(a.history, models.NewUserMessage(err.Error()))
		if a.totalErrors >= a.cfg.maxLocatorErrors() {
			return nil, "", &TurnError{Kind: ErrKindFatal, Err: err}
		}
		return nil, "", nil
	}
	if len(resolved) == 0 || resolved[0].Locator == nil {
		return nil, "", nil
	}

	executor := actionexec.New(page, distilled.Index)
	executed := executor.Run(ctx, resolved)

	for _, step := range executed {
		if step.Result != "" {
			a.history = append(a.history, models.NewUserMessage(step.Result))
		}
	}
	return nil, "", nil
}

// errOrTimeout normalizes a nil poll error (budget simply exhausted) into
// an explicit error so callers always have something to log.
func errOrTimeout(err error) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("navagent: human hand-off not resumed")
}

func finalAnswer(resp *models.LLMResponse) string {
	if resp.Answer != "" {
		return resp.Reasoning + ": " + resp.Answer
	}
	return resp.Reasoning
}
