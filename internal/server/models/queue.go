package models

import "time"

type Operation string

const (
	OpCreate   Operation = "CREATE"
	OpUpdate   Operation = "UPDATE"
	OpDelete   Operation = "DELETE"
	OpRestore  Operation = "RESTORE"
	OpBulkSync Operation = "BULK_SYNC"
)

func (o Operation) Valid() bool {
	switch o {
	case OpCreate, OpUpdate, OpDelete, OpRestore, OpBulkSync:
		return true
	}
	return false
}

// Watermarked reports whether the operation is checked against the server
// record's last-modified time before it is applied.
func (o Operation) Watermarked() bool {
	return o == OpUpdate || o == OpDelete
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank orders priorities; higher drains first. Unknown values rank below low.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

func (p Priority) Valid() bool {
	return p.Rank() > 0
}

type QueueStatus string

const (
	QueuePending   QueueStatus = "pending"
	QueueSyncing   QueueStatus = "syncing"
	QueueCompleted QueueStatus = "completed"
	QueueFailed    QueueStatus = "failed"
	QueueConflict  QueueStatus = "conflict"
	QueueSkipped   QueueStatus = "skipped"
)

// CanTransitionTo encodes the queue item lifecycle. Nothing returns to
// pending; failed may re-enter syncing, subject to the retry budget which the
// caller checks with QueueItem.RetriesLeft.
func (s QueueStatus) CanTransitionTo(next QueueStatus) bool {
	switch s {
	case QueuePending:
		return next == QueueSyncing || next == QueueSkipped
	case QueueSyncing:
		return next == QueueCompleted || next == QueueFailed || next == QueueConflict || next == QueueSkipped
	case QueueFailed:
		return next == QueueSyncing
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s QueueStatus) Terminal() bool {
	return s == QueueCompleted || s == QueueConflict || s == QueueSkipped
}

// QueueItem is one queued mutation. Items are retained after processing.
type QueueItem struct {
	ID              string
	DeviceID        string
	Seq             int64
	Operation       Operation
	TableName       string
	RecordID        string
	Payload         Payload
	Priority        Priority
	Status          QueueStatus
	RetryCount      int
	MaxRetries      int
	ClientWatermark *time.Time
	LastError       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ProcessedAt     *time.Time
}

// RetriesLeft reports whether a failed item may be claimed again.
func (q *QueueItem) RetriesLeft() bool {
	return q.RetryCount < q.MaxRetries
}

// Eligible reports whether a drain may claim the item.
func (q *QueueItem) Eligible() bool {
	return q.Status == QueuePending || (q.Status == QueueFailed && q.RetriesLeft())
}

// ItemFilter narrows queue listings. Zero values mean "any".
type ItemFilter struct {
	Status QueueStatus
	Limit  int
}
