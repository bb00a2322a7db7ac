package models

import "time"

type ConflictType string

const (
	// ConflictUpdateUpdate: the client updated a record the server changed later.
	ConflictUpdateUpdate ConflictType = "update_update"
	// ConflictUpdateDelete: one side deleted a record the other side changed.
	ConflictUpdateDelete ConflictType = "update_delete"
	// ConflictMissingRecord: the client touched a record the server does not have.
	ConflictMissingRecord ConflictType = "missing_record"
)

type ResolutionStrategy string

const (
	StrategyClientWins      ResolutionStrategy = "client_wins"
	StrategyServerWins      ResolutionStrategy = "server_wins"
	StrategyMerge           ResolutionStrategy = "merge"
	StrategyManualReview    ResolutionStrategy = "manual_review"
	StrategyLatestTimestamp ResolutionStrategy = "latest_timestamp"
)

func (s ResolutionStrategy) Valid() bool {
	switch s {
	case StrategyClientWins, StrategyServerWins, StrategyMerge, StrategyManualReview, StrategyLatestTimestamp:
		return true
	}
	return false
}

// Conflict records a divergence found while draining a queue item.
// There is at most one per queue item and conflicts are never deleted.
type Conflict struct {
	ID                   string
	QueueItemID          string
	DeviceID             string
	TableName            string
	RecordID             string
	Type                 ConflictType
	ServerData           map[string]any
	ClientData           map[string]any
	ServerTimestamp      *time.Time
	ClientTimestamp      *time.Time
	Strategy             ResolutionStrategy
	RequiresManualReview bool
	Resolved             bool
	ResolutionData       map[string]any
	ResolvedBy           string
	ResolutionNotes      string
	ResolvedAt           *time.Time
	CreatedAt            time.Time
}
