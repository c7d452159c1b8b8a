package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/haasonsaas/surfari-go/pkg/models"
)

// Session drives one task's attempt to load a prior recording, following
// the original implementation's four-step protocol: exact hash match,
// then (if configured) parameterized match with variable substitution,
// then give up and let the caller fall back to a live model.
type Session struct {
	Store         *Store
	Parameterizer Parameterizer
	UseParameterization bool

	SiteID   int64
	SiteName string

	TaskDescription string

	// Populated by AttemptLoad.
	TaskHash              string
	ParameterizedTaskDesc string
	ParameterizedTaskHash string
	CurrentVariables      map[string]string
	recordedVariables     map[string]string
}

// LoadResult is what AttemptLoad found, ready to hand to a Player.
type LoadResult struct {
	Loaded      bool
	ChatHistory []models.ChatMessage
}

// AttemptLoad tries an exact task-hash match first; if that misses and
// parameterization is enabled, it parameterizes the task description,
// looks up the parameterized hash, and substitutes the recorded run's
// variable values for the current task's variable values throughout the
// recorded history.
func (s *Session) AttemptLoad(ctx context.Context) (LoadResult, error) {
	s.TaskHash = TaskHash(s.TaskDescription)

	rec, ok, err := s.Store.FetchExact(ctx, s.SiteID, s.TaskHash)
	if err != nil {
		return LoadResult{}, err
	}
	if ok {
		s.CurrentVariables = rec.HistoryVariables
		return LoadResult{Loaded: true, ChatHistory: rec.ChatHistory}, nil
	}

	if !s.UseParameterization || s.Parameterizer == nil {
		return LoadResult{}, nil
	}

	param, err := s.Parameterizer.Parameterize(ctx, s.TaskDescription)
	if err != nil {
		return LoadResult{}, fmt.Errorf("replay: parameterize task: %w", err)
	}
	if !param.valid(s.TaskDescription) {
		return LoadResult{}, nil
	}
	s.ParameterizedTaskDesc = param.ParameterizedTaskDesc
	s.CurrentVariables = param.Variables
	s.ParameterizedTaskHash = TaskHash(s.ParameterizedTaskDesc)

	paramRec, ok, err := s.Store.FetchParameterized(ctx, s.SiteID, s.ParameterizedTaskHash)
	if err != nil {
		return LoadResult{}, err
	}
	if !ok {
		return LoadResult{}, nil
	}
	s.recordedVariables = paramRec.HistoryVariables

	if len(s.recordedVariables) == 0 || len(s.CurrentVariables) == 0 {
		return LoadResult{Loaded: true, ChatHistory: paramRec.ChatHistory}, nil
	}

	substituted := substituteVariables(paramRec.ChatHistory, s.recordedVariables, s.CurrentVariables)
	return LoadResult{Loaded: true, ChatHistory: substituted}, nil
}

// substituteVariables deep-copies history and, for every message that
// carries free text, replaces each recorded variable's old literal value
// with the current run's value for the same placeholder key. A variable
// present in the recording but absent from the current run is left
// untouched (no value to substitute with).
func substituteVariables(history []models.ChatMessage, recorded, current map[string]string) []models.ChatMessage {
	out := make([]models.ChatMessage, len(history))
	copy(out, history)
	for i, msg := range out {
		if msg.Text == "" {
			continue
		}
		text := msg.Text
		for key, oldVal := range recorded {
			newVal, ok := current[key]
			if !ok || oldVal == "" {
				continue
			}
			text = strings.ReplaceAll(text, oldVal, newVal)
		}
		out[i].Text = text
	}
	return out
}

// Save builds a Recording from the session's current state and persists
// it. Callers gate this on SaveSuccessfulTaskOnly and call it once, at
// task completion (see navagent.Agent.saveOnCompletion), matching
// spec.md §4.7's save protocol.
func (s *Session) Save(ctx context.Context, chatHistory []models.ChatMessage) (int64, error) {
	rec := Recording{
		SiteID:                s.SiteID,
		SiteName:              s.SiteName,
		TaskHash:              s.TaskHash,
		TaskDescription:       s.TaskDescription,
		ParameterizedTaskHash: s.ParameterizedTaskHash,
		ParameterizedTaskDesc: s.ParameterizedTaskDesc,
		ChatHistory:           chatHistory,
		HistoryVariables:      s.CurrentVariables,
	}
	return s.Store.Save(ctx, rec)
}

// decodeResponse parses an assistant_text ChatMessage's Text as a model
// turn, the shape recorded for every assistant turn during a run.
func decodeResponse(msg models.ChatMessage) (*models.LLMResponse, error) {
	var resp models.LLMResponse
	if err := json.Unmarshal([]byte(msg.Text), &resp); err != nil {
		return nil, fmt.Errorf("replay: decode recorded response: %w", err)
	}
	return &resp, nil
}
