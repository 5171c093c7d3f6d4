package domain

import (
	"time"
)

type Trigger string

const (
	TriggerScheduled   Trigger = "scheduled"
	TriggerFull        Trigger = "full"
	TriggerIncremental Trigger = "incremental"
	TriggerManual      Trigger = "manual"
)

// SyncRequest scopes one orchestrator run.
// Zero values mean "all apps", "all platforms" and "source maximum".
type SyncRequest struct {
	AppID    *int64   `json:"app_id,omitempty"`
	Platform Platform `json:"platform,omitempty"`
	Limit    int      `json:"limit,omitempty"`
	Trigger  Trigger  `json:"trigger"`
}

type UnitStatus string

const (
	UnitSucceeded UnitStatus = "success"
	UnitSkipped   UnitStatus = "skipped"
	UnitFailed    UnitStatus = "failed"
)

// UnitResult is the outcome of one (app, platform) pair within a run.
type UnitResult struct {
	AppID    int64
	AppName  string
	Platform Platform
	Status   UnitStatus
	Fetched  int
	Merge    MergeResult
	Err      error
	Duration time.Duration
}

// RunSummary holds statistics about a sync run.
type RunSummary struct {
	RunID     string
	Request   SyncRequest
	StartedAt time.Time
	Duration  time.Duration
	Units     []UnitResult
}

func (s *RunSummary) count(status UnitStatus) int {
	n := 0
	for _, u := range s.Units {
		if u.Status == status {
			n++
		}
	}
	return n
}

func (s *RunSummary) Succeeded() int { return s.count(UnitSucceeded) }
func (s *RunSummary) Skipped() int   { return s.count(UnitSkipped) }
func (s *RunSummary) Failed() int    { return s.count(UnitFailed) }

func (s *RunSummary) Inserted() int {
	n := 0
	for _, u := range s.Units {
		n += u.Merge.Inserted
	}
	return n
}

func (s *RunSummary) Duplicates() int {
	n := 0
	for _, u := range s.Units {
		n += u.Merge.Duplicates
	}
	return n
}

// SyncState is the bookkeeping row kept per (app, platform).
type SyncState struct {
	AppID         int64      `db:"app_id" json:"app_id"`
	Platform      Platform   `db:"platform" json:"platform"`
	LastSyncedAt  *time.Time `db:"last_synced_at" json:"last_synced_at,omitempty"`
	LastInserted  int64      `db:"last_inserted" json:"last_inserted"`
	TotalInserted int64      `db:"total_inserted" json:"total_inserted"`
	LastError     *string    `db:"last_error" json:"last_error,omitempty"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}
