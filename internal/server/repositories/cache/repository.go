// Package cache persists the per-device offline cache.
package cache

import (
	"context"
	"time"

	"github.com/dmitrijs2005/offsync/internal/server/models"
)

// Repository returns common.ErrorNotFound for unknown keys.
type Repository interface {
	// Upsert writes e under its (device, table, record) key. Version starts at
	// 1 and is bumped whenever the content hash changes.
	Upsert(ctx context.Context, e *models.CacheEntry) (*models.CacheEntry, error)
	Get(ctx context.Context, deviceID, table, recordID string) (*models.CacheEntry, error)
	TouchAccess(ctx context.Context, deviceID, table, recordID string, now time.Time) error
	SetDirty(ctx context.Context, deviceID, table, recordID string, dirty bool, now time.Time) error
	// DeleteExpired removes non-critical entries expired at now and returns
	// how many went plus the distinct devices that lost entries.
	DeleteExpired(ctx context.Context, now time.Time) (int, []string, error)
	// SizeExcluding sums the device's cached bytes without the given key.
	SizeExcluding(ctx context.Context, deviceID, table, recordID string) (int64, error)
}
