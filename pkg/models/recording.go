package models

import "time"

// Recording is one stored run of a task: its chat history, and, when
// parameterization is enabled, the template form used to match future
// runs with different variable values. Uniqueness is
// (site_name, task_hash, parameterized_hash); a save replaces any
// existing row with the same key.
type Recording struct {
	TaskID             int64
	SiteID             int64
	SiteName           string
	TaskHash           string
	TaskText           string
	ParameterizedHash  string
	ParameterizedText  string
	ChatHistory        []ChatMessage
	Variables          map[string]string
	CreatedAt          time.Time
}
