package models

import "time"

type SessionType string

const (
	SessionIncremental SessionType = "incremental"
	SessionFull        SessionType = "full"
	SessionForced      SessionType = "forced"
	SessionManual      SessionType = "manual"
)

func (t SessionType) Valid() bool {
	switch t {
	case SessionIncremental, SessionFull, SessionForced, SessionManual:
		return true
	}
	return false
}

type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionSyncing   SessionStatus = "syncing"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// OutcomeCounts tallies queue items processed during a session.
// Exhausted counts failed items that have no retries left.
type OutcomeCounts struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Conflict  int `json:"conflict"`
	Skipped   int `json:"skipped"`
	Exhausted int `json:"exhausted"`
}

// Processed is the number of items that reached an outcome.
func (c OutcomeCounts) Processed() int {
	return c.Completed + c.Failed + c.Conflict + c.Skipped
}

// SessionSummary is stored as jsonb on the session row.
type SessionSummary struct {
	Counts              OutcomeCounts `json:"counts"`
	UnresolvedConflicts []string      `json:"unresolved_conflicts,omitempty"`
	Error               string        `json:"error,omitempty"`
}

type SyncSession struct {
	ID                  string
	DeviceID            string
	Type                SessionType
	Status              SessionStatus
	InitiatedBy         string
	TotalOperations     int
	CompletedOperations int
	FailedOperations    int
	ConflictOperations  int
	SuccessRate         float64
	Summary             SessionSummary
	StartedAt           time.Time
	CompletedAt         *time.Time
	NextSyncAt          *time.Time
}

// SuccessRate is completed/total, or 1 when nothing was due.
func SuccessRate(completed, total int) float64 {
	if total <= 0 || completed >= total {
		return 1
	}
	return float64(completed) / float64(total)
}
