package models

import "time"

type DeviceStatus string

const (
	DeviceOnline      DeviceStatus = "online"
	DeviceOffline     DeviceStatus = "offline"
	DeviceSyncing     DeviceStatus = "syncing"
	DeviceMaintenance DeviceStatus = "maintenance"
	DeviceDisabled    DeviceStatus = "disabled"
)

func (s DeviceStatus) Valid() bool {
	switch s {
	case DeviceOnline, DeviceOffline, DeviceSyncing, DeviceMaintenance, DeviceDisabled:
		return true
	}
	return false
}

// Available reports whether a sync round may start for a device in this status.
func (s DeviceStatus) Available() bool {
	return s == DeviceOnline || s == DeviceOffline
}

// SyncConfig is the per-device synchronization policy. It is stored as jsonb.
type SyncConfig struct {
	AutoSync          bool          `json:"auto_sync"`
	SyncFrequency     time.Duration `json:"sync_frequency"`
	MaxOfflineHours   int           `json:"max_offline_hours"`
	StorageLimitBytes int64         `json:"storage_limit_bytes"`
}

// Device is a registered client endpoint. Devices are never hard-deleted.
type Device struct {
	ID               string
	ExternalID       string
	TenantID         string
	Name             string
	Platform         string
	AppVersion       string
	Config           SyncConfig
	Status           DeviceStatus
	LastSeenAt       time.Time
	LastSyncAt       *time.Time
	NextSyncAt       *time.Time
	StorageUsedBytes int64
	CachedRecords    int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DeviceAttrs are the mutable registration attributes.
// A nil Config keeps the stored one (or the server default for new devices).
type DeviceAttrs struct {
	TenantID   string
	Name       string
	Platform   string
	AppVersion string
	Config     *SyncConfig
}

// StorageStats is the aggregate cache footprint of one device.
type StorageStats struct {
	UsedBytes     int64
	CachedRecords int64
}
