package models

import "time"

// RunOptions are the per-task behavior flags threaded through the
// navigation agent loop, the tool fabric, and the record/replay store.
type RunOptions struct {
	MaskData           bool
	MultiActionPerTurn bool
	RecordAndReplay    bool
	ParameterizeReplay bool
	SendScreenshot     bool
	SaveScreenshot     bool
	UseSystemBrowser   bool
	AttachEndpoint     string
	MaxTabs            int
}

// DefaultRunOptions mirrors the CLI's defaults (§6): masking and
// record/replay on, one action per turn, launch-mode browser.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		MaskData:           true,
		RecordAndReplay:    true,
		ParameterizeReplay: true,
		MaxTabs:            10,
	}
}

// Task is one invocation's goal and target site. It is created once per
// invocation and is immutable after the agent loop starts.
type Task struct {
	Goal      string
	SiteID    int64
	SiteName  string
	URL       string
	Options   RunOptions
	CreatedAt time.Time
}

// NewTask constructs a Task with the given options, stamping CreatedAt.
func NewTask(goal string, siteID int64, siteName, url string, opts RunOptions) Task {
	return Task{
		Goal:      goal,
		SiteID:    siteID,
		SiteName:  siteName,
		URL:       url,
		Options:   opts,
		CreatedAt: time.Now(),
	}
}
