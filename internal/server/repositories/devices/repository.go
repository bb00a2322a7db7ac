// Package devices persists the device registry.
package devices

import (
	"context"
	"time"

	"github.com/dmitrijs2005/offsync/internal/server/models"
)

// Repository returns common.ErrDeviceNotFound for unknown devices.
type Repository interface {
	// Upsert registers or refreshes the device keyed by externalID. When
	// attrs.Config is nil new devices get defaults and existing ones keep
	// their stored config. Maintenance and disabled statuses survive.
	Upsert(ctx context.Context, externalID string, attrs models.DeviceAttrs, defaults models.SyncConfig, now time.Time) (*models.Device, error)
	GetByID(ctx context.Context, id string) (*models.Device, error)
	// GetForUpdate reads the device with a row lock; use inside a transaction.
	GetForUpdate(ctx context.Context, id string) (*models.Device, error)
	Touch(ctx context.Context, id string, now time.Time) (*models.Device, error)
	SetStatus(ctx context.Context, id string, status models.DeviceStatus, now time.Time) error
	MarkSyncCompleted(ctx context.Context, id string, at time.Time, next *time.Time) error
	RecomputeStorage(ctx context.Context, id string) (models.StorageStats, error)
}
