// Package queue persists the per-device sync queue.
package queue

import (
	"context"
	"time"

	"github.com/dmitrijs2005/offsync/internal/server/models"
)

type Repository interface {
	// Insert stores a pending item and fills ID (when empty), Seq and timestamps.
	Insert(ctx context.Context, item *models.QueueItem) error
	// Claim moves up to limit eligible items of a device to syncing and
	// returns them in drain order (priority desc, seq asc). Rows locked by a
	// concurrent claim are skipped.
	Claim(ctx context.Context, deviceID string, limit int, now time.Time) ([]models.QueueItem, error)
	// Finish moves a syncing item to an outcome status. It returns
	// common.ErrInvalidTransition when the item is not syncing.
	Finish(ctx context.Context, id string, to models.QueueStatus, lastErr string, now time.Time) error
	// MarkFailed records an apply failure and bumps retry_count.
	MarkFailed(ctx context.Context, id string, cause string, now time.Time) (*models.QueueItem, error)
	// FailStranded moves every item still syncing to failed and counts the
	// interruption as an attempt. It returns the number of items moved.
	FailStranded(ctx context.Context, cause string, now time.Time) (int, error)
	CountEligible(ctx context.Context, deviceID string) (int, error)
	CountOutcomesSince(ctx context.Context, deviceID string, since time.Time) (models.OutcomeCounts, error)
	ListByDevice(ctx context.Context, deviceID string, filter models.ItemFilter) ([]models.QueueItem, error)
	GetByID(ctx context.Context, id string) (*models.QueueItem, error)
}
