package models

import "time"

const (
	AuditDeviceRegistered = "device.registered"
	AuditDeviceStatus     = "device.status_changed"
	AuditConflictResolved = "conflict.resolved"
)

type AuditEntry struct {
	ID        int64
	DeviceID  string
	Action    string
	Details   map[string]any
	CreatedAt time.Time
}
