package navagent

import "fmt"

const reviewSuccessSystemPrompt = `You are reviewing another assistant's claim that it finished a browser task.
Given the task goal, the turn history, and the page layout below, decide whether the goal was actually met.
Respond only with JSON: {"review_decision": "Goal Met", "review_feedback": "..."} or {"review_decision": "Goal Not Met", "review_feedback": "..."}.`

const reviewDelegationSystemPrompt = `You are reviewing another assistant's claim that a task cannot proceed without a human.
Given the task goal, the turn history, and the page layout below, decide whether a concrete next step is actually available.
Respond only with JSON: {"review_decision": "Suggestion", "review_feedback": "..."} or {"review_decision": "Delegate to User", "review_feedback": "..."}.`

// navigationUserPrompt wraps a distilled page layout the same way the
// original's NAVIGATION_USER_PROMPT.format(page_content=...) does,
// noting that disambiguation indices may have shifted since the last
// turn.
func navigationUserPrompt(pageContent string) string {
	return fmt.Sprintf("The page currently looks like this. Interactable element indices may have shifted since the last turn.\n%s", pageContent)
}
