package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/surfari-go/internal/navagent"
	"github.com/haasonsaas/surfari-go/internal/navconfig"
	"github.com/haasonsaas/surfari-go/internal/replay"
)

func buildRunCmd() *cobra.Command {
	var (
		siteName string
		task     string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single task against one configured site",
		Example: `  navigation-cli run --config nav.yaml --site united --task "check in for flight UA123"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := navconfig.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			site, ok := cfg.Sites[siteName]
			if !ok {
				return fmt.Errorf("no site named %q in %s", siteName, configPath)
			}

			ctx := cmd.Context()
			rt, err := buildRuntime(ctx, cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			outcome, err := runSiteTask(ctx, rt, site, task)
			if err != nil {
				return err
			}
			printOutcome(cmd.OutOrStdout(), siteName, task, outcome)
			if !outcome.Succeeded {
				return fmt.Errorf("task did not succeed (handoff=%v)", outcome.Handoff)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&siteName, "site", "", "site name as it appears in the config's sites map")
	cmd.Flags().StringVar(&task, "task", "", "natural-language task description")
	cmd.MarkFlagRequired("site")
	cmd.MarkFlagRequired("task")
	return cmd
}

func buildBatchCmd() *cobra.Command {
	var (
		file        string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run many tasks from a CSV file with bounded concurrency",
		Long: `Each CSV row is "site,task". Rows run with up to --concurrency tasks
in flight at once, mirroring the turn loop's own bounded-concurrency
tool dispatch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := navconfig.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			rows, err := readBatchCSV(file)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			rt, err := buildRuntime(ctx, cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			results := runBatch(ctx, rt, cfg, rows, concurrency)

			failures := 0
			for _, r := range results {
				printOutcome(cmd.OutOrStdout(), r.row.site, r.row.task, r.outcome)
				if r.err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "  error: %v\n", r.err)
					failures++
					continue
				}
				if !r.outcome.Succeeded {
					failures++
				}
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d tasks did not succeed", failures, len(results))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "CSV file of site,task rows")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "maximum tasks running at once")
	cmd.MarkFlagRequired("file")
	return cmd
}

func buildListRecordedTasksCmd() *cobra.Command {
	var siteName string
	cmd := &cobra.Command{
		Use:   "list-recorded-tasks",
		Short: "List recordings saved by previous runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := navconfig.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.ReplayDBPath == "" {
				return fmt.Errorf("config has no replay_db_path configured")
			}
			store, err := replay.Open(cfg.ReplayDBPath)
			if err != nil {
				return fmt.Errorf("open replay store: %w", err)
			}
			defer store.Close()

			var siteID int64
			if siteName != "" {
				site, ok := cfg.Sites[siteName]
				if !ok {
					return fmt.Errorf("no site named %q in %s", siteName, configPath)
				}
				siteID = site.SiteID
			}

			recordings, err := store.ListRecordings(cmd.Context(), siteID)
			if err != nil {
				return fmt.Errorf("list recordings: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(recordings) == 0 {
				fmt.Fprintln(out, "no recordings found")
				return nil
			}
			for _, r := range recordings {
				kind := "exact"
				if r.Parameterized {
					kind = "parameterized"
				}
				fmt.Fprintf(out, "[%d] %s (%s) %s — %s\n",
					r.TaskID, r.SiteName, kind, r.CreatedAt.Format(time.RFC3339), r.TaskDescription)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&siteName, "site", "", "restrict to one site's recordings")
	return cmd
}

func printOutcome(w io.Writer, site, task string, outcome navagent.Outcome) {
	status := "handoff"
	if outcome.Succeeded {
		status = "success"
	} else if !outcome.Handoff {
		status = "incomplete"
	}
	fmt.Fprintf(w, "[%s] %s: %s — %s\n", site, status, task, outcome.Answer)
}

// runSiteTask opens a fresh page on the shared browser manager, wires
// that site's navagent.Config, and drains the agent's event channel to
// its final outcome.
func runSiteTask(ctx context.Context, rt *runtime, site navconfig.SiteConfig, task string) (navagent.Outcome, error) {
	systemPrompt, err := readSystemPrompt(site.SystemPromptFile)
	if err != nil {
		return navagent.Outcome{}, err
	}
	agentCfg, err := rt.buildAgentConfig(ctx, site, systemPrompt)
	if err != nil {
		return navagent.Outcome{}, err
	}

	page, err := rt.browser.NewPage(ctx)
	if err != nil {
		return navagent.Outcome{}, fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	if site.UseReplay && rt.replay != nil {
		agentCfg.Replay = &replay.Session{
			Store:               rt.replay,
			SiteID:              site.SiteID,
			SiteName:            site.SiteName,
			TaskDescription:     task,
			TaskHash:            replay.TaskHash(task),
			UseParameterization: site.UseParameterization,
		}
		agentCfg.SaveSuccessfulTaskOnly = site.SaveSuccessfulTaskOnly
	}

	agent := navagent.NewAgent(agentCfg, page)

	var outcome navagent.Outcome
	for event := range agent.Run(ctx, task) {
		if event.Err != nil {
			slog.Warn("navigation turn error", "site", site.SiteName, "error", event.Err)
		}
		if event.Message != "" {
			slog.Info("navigation turn", "site", site.SiteName, "message", event.Message)
		}
		if event.Final != nil {
			outcome = *event.Final
		}
	}
	return outcome, nil
}

func readSystemPrompt(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read system prompt file %q: %w", path, err)
	}
	return string(data), nil
}

type batchRow struct {
	site string
	task string
}

func readBatchCSV(path string) ([]batchRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open batch file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(bufio.NewReader(f))
	reader.FieldsPerRecord = 2
	var rows []batchRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse batch file: %w", err)
		}
		site := strings.TrimSpace(record[0])
		task := strings.TrimSpace(record[1])
		if site == "" || task == "" || strings.EqualFold(site, "site") {
			continue // skip blank rows and an optional header row
		}
		rows = append(rows, batchRow{site: site, task: task})
	}
	return rows, nil
}

type batchResult struct {
	row     batchRow
	outcome navagent.Outcome
	err     error
}

// runBatch drives every row to completion with at most concurrency tasks
// in flight at once, grounded on internal/agent's ExecuteConcurrently
// semaphore-plus-waitgroup pattern.
func runBatch(ctx context.Context, rt *runtime, cfg *navconfig.Config, rows []batchRow, concurrency int) []batchResult {
	if concurrency <= 0 {
		concurrency = 4
	}
	results := make([]batchResult, len(rows))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, row := range rows {
		wg.Add(1)
		go func(idx int, r batchRow) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = batchResult{row: r, err: ctx.Err()}
				return
			}

			site, ok := cfg.Sites[r.site]
			if !ok {
				results[idx] = batchResult{row: r, err: fmt.Errorf("no site named %q", r.site)}
				return
			}
			outcome, err := runSiteTask(ctx, rt, site, r.task)
			results[idx] = batchResult{row: r, outcome: outcome, err: err}
		}(i, row)
	}
	wg.Wait()
	return results
}
