package navagent

import (
	"context"
	"testing"
)

func TestUsageRecordCostComputation(t *testing.T) {
	rec := UsageRecord{Model: "gpt-5", PromptTokenCount: 1_000_000, CandidatesTokenCount: 500_000}
	rates := ModelRates{InputPerMillion: 3, OutputPerMillion: 15}
	promptCost, candidatesCost, total := rec.Cost(rates)
	if promptCost != 3 {
		t.Fatalf("expected prompt cost 3, got %v", promptCost)
	}
	if candidatesCost != 7.5 {
		t.Fatalf("expected candidates cost 7.5, got %v", candidatesCost)
	}
	if total != 10.5 {
		t.Fatalf("expected total cost 10.5, got %v", total)
	}
}

func TestUsageRecordCostRoundsToThreeDecimals(t *testing.T) {
	rec := UsageRecord{Model: "m", PromptTokenCount: 1234, CandidatesTokenCount: 0}
	rates := ModelRates{InputPerMillion: 3.333333, OutputPerMillion: 0}
	promptCost, _, _ := rec.Cost(rates)
	if promptCost != 0.004 {
		t.Fatalf("expected rounded cost 0.004, got %v", promptCost)
	}
}

func TestStatsStoreInsertRunStats(t *testing.T) {
	store, err := OpenStatsStore(":memory:")
	if err != nil {
		t.Fatalf("OpenStatsStore: %v", err)
	}
	defer store.Close()

	records := []UsageRecord{
		{Model: "gpt-5", Purpose: "NavigationAgent-united", PromptTokenCount: 1000, CandidatesTokenCount: 200},
		{Model: "gpt-5", Purpose: "ReviewNavigationExecution-united", PromptTokenCount: 300, CandidatesTokenCount: 50},
	}
	rates := map[string]ModelRates{"gpt-5": {InputPerMillion: 3, OutputPerMillion: 15}}

	if err := store.InsertRunStats(context.Background(), records, rates); err != nil {
		t.Fatalf("InsertRunStats: %v", err)
	}

	var count int
	if err := store.db.QueryRow("SELECT COUNT(*) FROM agent_run_stats").Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows inserted, got %d", count)
	}
}
