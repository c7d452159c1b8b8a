package navagent

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// ModelRates gives the per-million-token price for a model, so recorded
// usage can be turned into an estimated dollar cost the same way the
// original's insert_run_stats does with config's model_costs table.
type ModelRates struct {
	InputPerMillion  float64 `yaml:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million"`
}

// UsageRecord is one purpose's token usage for one turn, e.g.
// "ReviewNavigationExecution-united" or the navigation agent's own
// name, mirroring the original's per-agent-name breakdown inside
// llm_stats.
type UsageRecord struct {
	Model                string
	Purpose              string
	PromptTokenCount     int64
	CandidatesTokenCount int64
}

// Cost computes this record's cost for the given rates, rounded to 3
// decimal places the same way the original formats with "%.3f" before
// storing.
func (u UsageRecord) Cost(rates ModelRates) (promptCost, candidatesCost, total float64) {
	promptCost = round3(float64(u.PromptTokenCount) * rates.InputPerMillion / 1_000_000)
	candidatesCost = round3(float64(u.CandidatesTokenCount) * rates.OutputPerMillion / 1_000_000)
	total = round3(promptCost + candidatesCost)
	return
}

func round3(v float64) float64 {
	return float64(int64(v*1000+0.5)) / 1000
}

// StatsStore persists per-turn LLM usage for later cost analysis.
// Grounded on insert_run_stats's agent_run_stats table; backed by
// modernc.org/sqlite for the same CGO-free reason as internal/replay.
type StatsStore struct {
	db *sql.DB
}

// OpenStatsStore opens (creating if needed) the stats database at path.
func OpenStatsStore(path string) (*StatsStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("navagent: open stats store: %w", err)
	}
	s := &StatsStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *StatsStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS agent_run_stats (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			model TEXT NOT NULL,
			agent_name TEXT NOT NULL,
			prompt_token_count INTEGER NOT NULL,
			candidates_token_count INTEGER NOT NULL,
			prompt_token_cost REAL NOT NULL,
			candidates_token_cost REAL NOT NULL,
			total_llm_cost REAL NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		)
	`)
	if err != nil {
		return fmt.Errorf("navagent: create agent_run_stats table: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *StatsStore) Close() error { return s.db.Close() }

// InsertRunStats records one turn's usage across every purpose it
// touched, computing cost per record from the supplied rate table.
// Mirrors the original's loop over llm_stats.items(), one INSERT per
// agent_name.
func (s *StatsStore) InsertRunStats(ctx context.Context, records []UsageRecord, rates map[string]ModelRates) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("navagent: begin stats transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO agent_run_stats
			(model, agent_name, prompt_token_count, candidates_token_count, prompt_token_cost, candidates_token_cost, total_llm_cost)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("navagent: prepare stats insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		rate := rates[rec.Model]
		promptCost, candidatesCost, total := rec.Cost(rate)
		if _, err := stmt.ExecContext(ctx, rec.Model, rec.Purpose, rec.PromptTokenCount, rec.CandidatesTokenCount, promptCost, candidatesCost, total); err != nil {
			return fmt.Errorf("navagent: insert run stats for %s: %w", rec.Purpose, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("navagent: commit stats transaction: %w", err)
	}
	return nil
}
