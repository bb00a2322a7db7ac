package models

import "time"

// CacheEntry is a device-scoped copy of one business record.
type CacheEntry struct {
	DeviceID        string
	TableName       string
	RecordID        string
	Data            map[string]any
	ContentHash     string
	SizeBytes       int64
	Priority        Priority
	AccessFrequency int64
	Version         int64
	IsDirty         bool
	IsCritical      bool
	ExpiresAt       *time.Time
	LastAccessedAt  time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Expired reports whether the entry is past its expiry. Critical entries
// never expire.
func (c *CacheEntry) Expired(now time.Time) bool {
	if c.IsCritical || c.ExpiresAt == nil {
		return false
	}
	return !now.Before(*c.ExpiresAt)
}
