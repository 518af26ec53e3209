package app

import (
	"time"
)

// ItemStatus is the result of processing one catalog item
type ItemStatus string

const (
	// StatusNew means the item was seen for the first time and downloaded
	StatusNew ItemStatus = "new"
	// StatusUpdated means a newer version was downloaded and recorded
	StatusUpdated ItemStatus = "updated"
	// StatusUnchanged means the ledger already holds the remote version
	StatusUnchanged ItemStatus = "unchanged"
	// StatusStale means the download finished but the ledger kept a newer version
	StatusStale ItemStatus = "stale"
	// StatusPending means an update is due but the run is a dry run
	StatusPending ItemStatus = "pending"
	// StatusFailed means the item was skipped because of an error
	StatusFailed ItemStatus = "failed"
)

// ItemOutcome records what happened to one item
type ItemOutcome struct {
	ID     string
	Status ItemStatus
	// Path is the downloaded artifact, when there is one
	Path string
	// Err is set for StatusFailed and is a *domain.ItemError
	Err error
}

// RunReport summarises a sync run
type RunReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	LastCheck  int64
	Listed     int
	Excluded   int
	Outcomes   []ItemOutcome
}

// Count returns the number of outcomes with the given status
func (r *RunReport) Count(status ItemStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Failures returns the failed outcomes in processing order
func (r *RunReport) Failures() []ItemOutcome {
	var failed []ItemOutcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			failed = append(failed, o)
		}
	}
	return failed
}

// Duration returns how long the run took
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
