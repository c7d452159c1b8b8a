package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/haasonsaas/surfari-go/internal/browser"
	"github.com/haasonsaas/surfari-go/internal/credstore"
	"github.com/haasonsaas/surfari-go/internal/distill"
	"github.com/haasonsaas/surfari-go/internal/modelclient"
	"github.com/haasonsaas/surfari-go/internal/navagent"
	"github.com/haasonsaas/surfari-go/internal/navconfig"
	"github.com/haasonsaas/surfari-go/internal/otp"
	"github.com/haasonsaas/surfari-go/internal/replay"
	"github.com/haasonsaas/surfari-go/internal/resolver"
	"github.com/haasonsaas/surfari-go/internal/rtool"
	"github.com/haasonsaas/surfari-go/internal/toolfabric"
	"github.com/haasonsaas/surfari-go/pkg/models"
)

// runtime bundles every long-lived resource a task run (or a batch of
// them) shares: one browser session manager, one model client, one
// session per configured tool server, and the storage layers, all built once from the
// loaded config and reused across however many sites/tasks the CLI
// invocation drives.
type runtime struct {
	cfg     *navconfig.Config
	browser *browser.Manager
	models  *modelclient.Client
	secrets *resolver.SecretResolver
	replay  *replay.Store
	stats   *navagent.StatsStore
	creds    *credstore.Store
	gmail    *otp.GmailFetcher
	pinecone *resolver.PineconeResolver
	tools    map[string]*rtool.Session // keyed by tool server name
}

// buildRuntime wires every shared resource a task run needs from a
// loaded navconfig.Config, following the teacher's commands.go practice
// of constructing dependencies inline in the command body rather than
// behind a DI container.
func buildRuntime(ctx context.Context, cfg *navconfig.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg, tools: map[string]*rtool.Session{}}

	browserCfg := browser.Config{
		Headless:         cfg.Browser.Headless,
		ViewportWidth:    cfg.Browser.ViewportWidth,
		ViewportHeight:   cfg.Browser.ViewportHeight,
		AttachEndpoint:   cfg.Browser.AttachEndpoint,
		AttachSocketPath: cfg.Browser.AttachSocketPath,
		UserDataDir:      cfg.Browser.UserDataDir,
	}
	if strings.EqualFold(cfg.Browser.Mode, "attach") {
		browserCfg.Mode = browser.ModeAttach
	}
	mgr, err := browser.NewManager(browserCfg)
	if err != nil {
		return nil, fmt.Errorf("navigation-cli: start browser: %w", err)
	}
	rt.browser = mgr

	modelClient := modelclient.NewClient(nil)
	for name, vendor := range cfg.Vendors {
		if err := registerVendor(ctx, modelClient, name, vendor); err != nil {
			return nil, err
		}
	}
	rt.models = modelClient

	masterKey := []byte(os.Getenv(cfg.MasterKeyEnv))
	if len(masterKey) == 0 {
		return nil, fmt.Errorf("navigation-cli: %s is unset or empty", cfg.MasterKeyEnv)
	}
	secrets, err := resolver.NewSecretResolver(masterKey)
	if err != nil {
		return nil, fmt.Errorf("navigation-cli: build secret resolver: %w", err)
	}
	rt.secrets = secrets

	if cfg.ReplayDBPath != "" {
		store, err := replay.Open(cfg.ReplayDBPath)
		if err != nil {
			return nil, fmt.Errorf("navigation-cli: open replay store: %w", err)
		}
		rt.replay = store
	}
	if cfg.StatsDBPath != "" {
		stats, err := navagent.OpenStatsStore(cfg.StatsDBPath)
		if err != nil {
			return nil, fmt.Errorf("navigation-cli: open stats store: %w", err)
		}
		rt.stats = stats
	}
	if cfg.CredDBPath != "" {
		creds, err := credstore.Open(cfg.CredDBPath)
		if err != nil {
			return nil, fmt.Errorf("navigation-cli: open credential store: %w", err)
		}
		rt.creds = creds
	}
	if cfg.Gmail.CredentialsFile != "" {
		fetcher, err := otp.NewGmailFetcher(ctx, cfg.Gmail.CredentialsFile, cfg.Gmail.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("navigation-cli: start gmail otp fetcher: %w", err)
		}
		rt.gmail = fetcher
	}

	if cfg.Pinecone.Index != "" {
		pc, err := resolver.NewPineconeResolver(resolver.PineconeConfig{
			APIKey:            os.Getenv(cfg.Pinecone.APIKeyEnv),
			Index:             cfg.Pinecone.Index,
			Namespace:         cfg.Pinecone.Namespace,
			EmbedModel:        cfg.Pinecone.EmbedModel,
			ScoreThreshold:    cfg.Pinecone.ScoreThreshold,
			TopK:              cfg.Pinecone.TopK,
			EmbeddingsBaseURL: cfg.Pinecone.EmbeddingsBaseURL,
			EmbeddingsAPIKey:  os.Getenv(cfg.Pinecone.EmbeddingsAPIKeyEnv),
		})
		if err != nil {
			return nil, fmt.Errorf("navigation-cli: build pinecone resolver: %w", err)
		}
		rt.pinecone = pc
	}

	for name, serverCfg := range cfg.ToolServers {
		session, err := rtool.Connect(ctx, serverCfg)
		if err != nil {
			return nil, fmt.Errorf("navigation-cli: connect tool server %q: %w", name, err)
		}
		rt.tools[name] = session
	}

	return rt, nil
}

func (rt *runtime) Close() {
	for _, session := range rt.tools {
		_ = session.Close()
	}
	if rt.creds != nil {
		_ = rt.creds.Close()
	}
	if rt.stats != nil {
		_ = rt.stats.Close()
	}
	if rt.replay != nil {
		_ = rt.replay.Close()
	}
	if rt.browser != nil {
		_ = rt.browser.Stop()
	}
}

func registerVendor(ctx context.Context, client *modelclient.Client, name string, v navconfig.VendorConfig) error {
	apiKey := os.Getenv(v.APIKeyEnv)
	switch strings.ToLower(v.Kind) {
	case "anthropic":
		client.Register(modelclient.NewAnthropicProvider(apiKey, v.DefaultModel), nil)
	case "openai":
		client.Register(modelclient.NewOpenAIProvider(apiKey, v.DefaultModel), nil)
	case "bedrock":
		provider, err := modelclient.NewBedrockProvider(ctx, v.Region, v.DefaultModel)
		if err != nil {
			return fmt.Errorf("navigation-cli: build bedrock provider %q: %w", name, err)
		}
		client.Register(provider, nil)
	case "gemini":
		provider, err := modelclient.NewGeminiProvider(ctx, apiKey, v.DefaultModel)
		if err != nil {
			return fmt.Errorf("navigation-cli: build gemini provider %q: %w", name, err)
		}
		client.Register(provider, nil)
	case "ollama":
		client.Register(modelclient.NewOllamaProvider(v.BaseURL, v.DefaultModel), nil)
	case "proxy":
		signingKey := os.Getenv(v.SigningKeyEnv)
		client.Register(modelclient.NewProxyProvider(v.BaseURL, apiKey, signingKey, name, v.DefaultModel), nil)
	default:
		return fmt.Errorf("navigation-cli: unknown vendor kind %q for %q", v.Kind, name)
	}
	return nil
}

// buildAgentConfig assembles a navagent.Config for one site, wiring in
// whichever shared runtime resources that site's config names.
func (rt *runtime) buildAgentConfig(ctx context.Context, site navconfig.SiteConfig, systemPrompt string) (navagent.Config, error) {
	fabric := toolfabric.New()
	for _, serverName := range site.ToolServers {
		session, ok := rt.tools[serverName]
		if !ok {
			return navagent.Config{}, fmt.Errorf("navigation-cli: site %q references unknown tool server %q", site.SiteName, serverName)
		}
		if err := fabric.RegisterRemote(ctx, session); err != nil {
			return navagent.Config{}, fmt.Errorf("navigation-cli: register tools from %q: %w", serverName, err)
		}
	}

	var delegationSites []navagent.DelegationSite
	for _, siteName := range site.DelegationSites {
		target, ok := rt.cfg.Sites[siteName]
		if !ok {
			continue
		}
		delegationSites = append(delegationSites, navagent.DelegationSite{SiteName: target.SiteName, URL: target.URL})
	}

	chain := &resolver.Chain{Secret: rt.secrets}
	if rt.pinecone != nil {
		chain.Embedding = rt.pinecone
	}

	// rt.gmail is a typed *otp.GmailFetcher; assigning a nil pointer
	// straight into the OTPFetcher interface field would make
	// Config.OTPFetcher != nil checks pass even when no fetcher is
	// configured, so only set it when non-nil.
	var otpFetcher navagent.OTPFetcher
	if rt.gmail != nil {
		otpFetcher = rt.gmail
	}

	var cred *models.SiteCredential
	if rt.creds != nil {
		loaded, ok, err := rt.creds.Get(ctx, site.SiteID)
		if err != nil {
			return navagent.Config{}, fmt.Errorf("navigation-cli: load credential for %q: %w", site.SiteName, err)
		}
		if ok {
			cred = &loaded
		}
	}

	agentCfg := navagent.Config{
		Name:              site.SiteName,
		SiteID:            site.SiteID,
		SiteName:          site.SiteName,
		Vendor:            site.Vendor,
		Model:             site.Model,
		ReviewerModel:     site.ReviewerModel,
		SystemPrompt:      systemPrompt,
		EnableDataMasking: site.EnableDataMasking,
		MaxTurns:          site.MaxTurns,
		MaxLocatorErrors:  site.MaxLocatorErrors,
		Caller:            rt.models,
		Tools:             navagent.FabricExecutor{Fabric: fabric},
		ToolDecls:         fabric.Declarations(),
		Distiller:         distill.New(),
		Resolver:          chain,
		OTPFetcher:        otpFetcher,
		DelegationSites:   navagent.NewDelegationSiteIndex(delegationSites),
		SubAgents:         cliSubAgentRunner{rt: rt},
		Stats:             rt.stats,
		Rates:             rt.cfg.ModelRates,
		Credential:        cred,
	}
	return agentCfg, nil
}

// cliSubAgentRunner implements navagent.SubAgentRunner by recursing into
// a fresh navagent.Agent on a new browser page, matching the delegation
// target back to a configured site by name.
type cliSubAgentRunner struct {
	rt *runtime
}

func (r cliSubAgentRunner) RunSubAgent(ctx context.Context, site navagent.DelegationSite, task string) (string, error) {
	for name, candidate := range r.rt.cfg.Sites {
		if candidate.SiteName != site.SiteName {
			continue
		}
		systemPrompt, err := readSystemPrompt(candidate.SystemPromptFile)
		if err != nil {
			return "", err
		}
		agentCfg, err := r.rt.buildAgentConfig(ctx, candidate, systemPrompt)
		if err != nil {
			return "", err
		}
		page, err := r.rt.browser.NewPage(ctx)
		if err != nil {
			return "", fmt.Errorf("navigation-cli: open sub-agent page for %q: %w", name, err)
		}
		defer page.Close()

		subAgent := navagent.NewAgent(agentCfg, page)
		var outcome navagent.Outcome
		for event := range subAgent.Run(ctx, task) {
			if event.Final != nil {
				outcome = *event.Final
			}
		}
		if !outcome.Succeeded {
			return "", fmt.Errorf("sub-agent task on %q did not succeed", site.SiteName)
		}
		return outcome.Answer, nil
	}
	return "", fmt.Errorf("navigation-cli: no configured site matches delegation target %q", site.SiteName)
}
