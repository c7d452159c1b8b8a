package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/haasonsaas/surfari-go/pkg/models"
)

// Chain is the Value Resolver Chain (spec.md §4.6): sentinels pass
// through, the secret resolver, an optional configured resolver and an
// optional embedding resolver each get a shot in order, and anything
// left unresolved demotes the turn to DELEGATE_TO_USER.
type Chain struct {
	Secret     *SecretResolver
	Configured Resolver // nil if none configured
	Embedding  Resolver // nil if no Pinecone-backed resolver is configured
}

// Resolve mutates resp in place: every step needing resolution is walked
// through the stages in order, and if any placeholder survives all of
// them, resp is rewritten into a DELEGATE_TO_USER turn per spec.md §4.6
// stage 4.
func (c *Chain) Resolve(ctx context.Context, resp *models.LLMResponse, cred *models.SiteCredential, rctx Context) error {
	steps := resp.AllSteps()
	var unresolved []string

	for i := range steps {
		step := &steps[i]
		if !step.NeedsResolution() {
			continue
		}
		placeholder := step.ResolveValue

		if IsSentinel(placeholder) {
			continue
		}

		if c.Secret != nil {
			if value, ok, err := c.Secret.Resolve(ctx, placeholder, rctx, cred); err != nil {
				return fmt.Errorf("resolver: secret stage: %w", err)
			} else if ok {
				step.Resolve(value)
				continue
			}
		}

		if c.Configured != nil {
			if value, ok, err := c.Configured.Resolve(ctx, placeholder, rctx); err != nil {
				return fmt.Errorf("resolver: configured stage: %w", err)
			} else if ok {
				step.Resolve(value)
				continue
			}
		}

		if c.Embedding != nil {
			if value, ok, err := c.Embedding.Resolve(ctx, placeholder, rctx); err != nil {
				return fmt.Errorf("resolver: embedding stage: %w", err)
			} else if ok {
				step.Resolve(value)
				continue
			}
		}

		unresolved = append(unresolved, placeholder)
	}

	writeBack(resp, steps)

	if len(unresolved) > 0 {
		delegate(resp, unresolved)
	}
	return nil
}

// writeBack copies the mutated steps slice back into whichever of
// resp.Step/resp.Steps was populated, since AllSteps() returns a slice
// sharing the same backing array but LLMResponse has no setter.
func writeBack(resp *models.LLMResponse, steps []models.LLMStep) {
	if len(resp.Steps) > 0 {
		resp.Steps = steps
		return
	}
	resp.Step = steps
}

// delegate rewrites resp into a DELEGATE_TO_USER turn per spec.md §4.6
// stage 4: reasoning is prefixed, and step/steps are cleared so the
// navigation loop's dispatch sees a pure hand-off with nothing left to
// execute.
func delegate(resp *models.LLMResponse, unresolved []string) {
	resp.StepExecution = models.ExecDelegateToUser
	resp.Reasoning = "Delegated to user for input: " + strings.Join(unresolved, ", ") + ". " + resp.Reasoning
	resp.Step = nil
	resp.Steps = nil
}
