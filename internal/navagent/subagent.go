package navagent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/haasonsaas/surfari-go/pkg/models"
)

// DelegationSite is one entry in the configured list of sites a
// navigation agent is allowed to delegate sub-tasks to. Grounded on the
// original's agent_delegation_site_list, a plain list of
// {site_name, url} dicts passed in at construction time.
type DelegationSite struct {
	SiteName string
	URL      string
}

// DelegationSiteIndex is a case-insensitive, whitespace-trimmed lookup
// over the configured delegation list. It is built once per agent
// config by NewDelegationSiteIndex and reused for every
// DELEGATE_TO_AGENT step, where the original rebuilds its site_index
// dict on every _handle_delegate_to_agent call.
type DelegationSiteIndex map[string]DelegationSite

// NewDelegationSiteIndex keys every site by its trimmed, lowercased
// name.
func NewDelegationSiteIndex(sites []DelegationSite) DelegationSiteIndex {
	idx := make(DelegationSiteIndex, len(sites))
	for _, s := range sites {
		key := strings.ToLower(strings.TrimSpace(s.SiteName))
		if key == "" {
			continue
		}
		idx[key] = s
	}
	return idx
}

func (idx DelegationSiteIndex) lookup(target string) (DelegationSite, bool) {
	site, ok := idx[strings.ToLower(strings.TrimSpace(target))]
	return site, ok
}

// allowedNames lists every configured site name, sorted, for the
// "must match one of the provided sites" error message.
func (idx DelegationSiteIndex) allowedNames() string {
	names := make([]string, 0, len(idx))
	for k := range idx {
		names = append(names, k)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "N/A"
	}
	return strings.Join(names, ", ")
}

// SubAgentRunner spawns and drives a fresh navigation agent against a
// delegation target, standing in for constructing a new NavigationAgent
// and calling its run() in the original. Agent does not implement it;
// cmd/navigation-cli's cliSubAgentRunner does, by opening a new page on
// the shared browser session manager and running a fresh Agent on it.
type SubAgentRunner interface {
	RunSubAgent(ctx context.Context, site DelegationSite, task string) (result string, err error)
}

// HandleDelegateToAgent runs every DELEGATE_TO_AGENT step against the
// configured delegation sites and returns one synthetic chat message per
// step, in order, exactly mirroring the original's behavior of
// appending one user-role message per step regardless of whether it
// succeeded, failed validation, or the target didn't match a configured
// site.
func HandleDelegateToAgent(ctx context.Context, runner SubAgentRunner, sites DelegationSiteIndex, steps []models.LLMStep) []string {
	messages := make([]string, 0, len(steps))

	for _, step := range steps {
		target := strings.TrimSpace(step.Target)
		value := step.Value

		if target == "" || value == "" {
			messages = append(messages, "Invalid delegation step; missing target or value.")
			continue
		}

		site, ok := sites.lookup(target)
		if !ok || site.URL == "" {
			messages = append(messages, fmt.Sprintf(
				"Site not found for delegation: %s. It must match one of the provided sites: %s",
				target, sites.allowedNames(),
			))
			continue
		}

		result, err := runner.RunSubAgent(ctx, site, value)
		if err != nil {
			messages = append(messages, fmt.Sprintf("Delegation to %s failed: %s", target, err.Error()))
			continue
		}
		messages = append(messages, fmt.Sprintf("Delegated to %s: %s", target, result))
	}

	return messages
}
