// Package outbox persists operations recorded on the device until they are
// accepted by the sync server.
package outbox

import (
	"context"
	"time"

	"github.com/dmitrijs2005/offsync/internal/client/models"
)

type Repository interface {
	// Add stores e as pending and fills its ID, Seq and CreatedAt.
	Add(ctx context.Context, e *models.OutboxEntry) error
	// Pending returns pending entries in Seq order.
	Pending(ctx context.Context, limit int) ([]models.OutboxEntry, error)
	MarkSent(ctx context.Context, id, serverItemID string, at time.Time) error
	MarkRejected(ctx context.Context, id, reason string) error
	// RecordAttempt notes a transient failure and keeps the entry pending.
	RecordAttempt(ctx context.Context, id, lastErr string) error
	// List returns entries with status (any when empty), newest first.
	List(ctx context.Context, status models.OutboxStatus, limit int) ([]models.OutboxEntry, error)
	Counts(ctx context.Context) (map[models.OutboxStatus]int, error)
}
