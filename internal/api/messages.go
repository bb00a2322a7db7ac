package api

import "time"

type SyncConfig struct {
	AutoSync             bool  `json:"auto_sync"`
	SyncFrequencySeconds int64 `json:"sync_frequency_seconds"`
	MaxOfflineHours      int   `json:"max_offline_hours"`
	StorageLimitBytes    int64 `json:"storage_limit_bytes"`
}

type Device struct {
	ID               string     `json:"id"`
	ExternalID       string     `json:"external_id"`
	TenantID         string     `json:"tenant_id,omitempty"`
	Name             string     `json:"name,omitempty"`
	Platform         string     `json:"platform,omitempty"`
	AppVersion       string     `json:"app_version,omitempty"`
	Config           SyncConfig `json:"config"`
	Status           string     `json:"status"`
	LastSeenAt       time.Time  `json:"last_seen_at"`
	LastSyncAt       *time.Time `json:"last_sync_at,omitempty"`
	NextSyncAt       *time.Time `json:"next_sync_at,omitempty"`
	StorageUsedBytes int64      `json:"storage_used_bytes"`
	CachedRecords    int64      `json:"cached_records"`
}

type RegisterDeviceRequest struct {
	ExternalID string      `json:"external_id"`
	TenantID   string      `json:"tenant_id,omitempty"`
	Name       string      `json:"name,omitempty"`
	Platform   string      `json:"platform,omitempty"`
	AppVersion string      `json:"app_version,omitempty"`
	Config     *SyncConfig `json:"config,omitempty"`
}

type RegisterDeviceResponse struct {
	Device      Device `json:"device"`
	AccessToken string `json:"access_token"`
}

type BulkRecord struct {
	RecordID string         `json:"record_id"`
	Fields   map[string]any `json:"fields"`
}

// EnqueueOperationRequest carries one client operation. Fields is used by
// CREATE and UPDATE, Records by BULK_SYNC, Reason by DELETE.
type EnqueueOperationRequest struct {
	DeviceID        string         `json:"device_id"`
	Operation       string         `json:"operation"`
	TableName       string         `json:"table_name"`
	RecordID        string         `json:"record_id,omitempty"`
	Fields          map[string]any `json:"fields,omitempty"`
	Records         []BulkRecord   `json:"records,omitempty"`
	Reason          string         `json:"reason,omitempty"`
	Priority        string         `json:"priority,omitempty"`
	ClientWatermark *time.Time     `json:"client_watermark,omitempty"`
}

type EnqueueOperationResponse struct {
	ItemID string `json:"item_id"`
}

type QueueItem struct {
	ID              string     `json:"id"`
	Seq             int64      `json:"seq"`
	Operation       string     `json:"operation"`
	TableName       string     `json:"table_name"`
	RecordID        string     `json:"record_id"`
	Priority        string     `json:"priority"`
	Status          string     `json:"status"`
	RetryCount      int        `json:"retry_count"`
	MaxRetries      int        `json:"max_retries"`
	LastError       string     `json:"last_error,omitempty"`
	ClientWatermark *time.Time `json:"client_watermark,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
}

type Conflict struct {
	ID                   string         `json:"id"`
	QueueItemID          string         `json:"queue_item_id"`
	DeviceID             string         `json:"device_id"`
	TableName            string         `json:"table_name"`
	RecordID             string         `json:"record_id"`
	Type                 string         `json:"type"`
	ServerData           map[string]any `json:"server_data,omitempty"`
	ClientData           map[string]any `json:"client_data,omitempty"`
	ServerTimestamp      *time.Time     `json:"server_timestamp,omitempty"`
	ClientTimestamp      *time.Time     `json:"client_timestamp,omitempty"`
	Strategy             string         `json:"strategy,omitempty"`
	RequiresManualReview bool           `json:"requires_manual_review"`
	Resolved             bool           `json:"resolved"`
	ResolutionData       map[string]any `json:"resolution_data,omitempty"`
	ResolvedBy           string         `json:"resolved_by,omitempty"`
	ResolutionNotes      string         `json:"resolution_notes,omitempty"`
	ResolvedAt           *time.Time     `json:"resolved_at,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
}

type OutcomeCounts struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Conflict  int `json:"conflict"`
	Skipped   int `json:"skipped"`
	Exhausted int `json:"exhausted"`
}

type Session struct {
	ID                  string        `json:"id"`
	DeviceID            string        `json:"device_id"`
	Type                string        `json:"type"`
	Status              string        `json:"status"`
	InitiatedBy         string        `json:"initiated_by,omitempty"`
	TotalOperations     int           `json:"total_operations"`
	CompletedOperations int           `json:"completed_operations"`
	FailedOperations    int           `json:"failed_operations"`
	ConflictOperations  int           `json:"conflict_operations"`
	SuccessRate         float64       `json:"success_rate"`
	Counts              OutcomeCounts `json:"counts"`
	UnresolvedConflicts []string      `json:"unresolved_conflicts,omitempty"`
	Error               string        `json:"error,omitempty"`
	StartedAt           time.Time     `json:"started_at"`
	CompletedAt         *time.Time    `json:"completed_at,omitempty"`
	NextSyncAt          *time.Time    `json:"next_sync_at,omitempty"`
}

type RunSyncRoundRequest struct {
	DeviceID    string `json:"device_id"`
	BatchSize   int    `json:"batch_size,omitempty"`
	SessionType string `json:"session_type,omitempty"`
	InitiatedBy string `json:"initiated_by,omitempty"`
}

type RunSyncRoundResponse struct {
	Session             Session       `json:"session"`
	Items               []QueueItem   `json:"items"`
	Counts              OutcomeCounts `json:"counts"`
	SuccessRate         float64       `json:"success_rate"`
	UnresolvedConflicts []Conflict    `json:"unresolved_conflicts"`
}

type ResolveConflictRequest struct {
	ConflictID   string         `json:"conflict_id"`
	Strategy     string         `json:"strategy"`
	ResolvedBy   string         `json:"resolved_by"`
	Notes        string         `json:"notes,omitempty"`
	MergedFields map[string]any `json:"merged_fields,omitempty"`
}

type ResolveConflictResponse struct {
	Conflict Conflict `json:"conflict"`
}

type ListConflictsRequest struct {
	DeviceID       string `json:"device_id"`
	UnresolvedOnly bool   `json:"unresolved_only"`
	Limit          int    `json:"limit,omitempty"`
}

type ListConflictsResponse struct {
	Conflicts []Conflict `json:"conflicts"`
}

type ListQueueItemsRequest struct {
	DeviceID string `json:"device_id"`
	Status   string `json:"status,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type ListQueueItemsResponse struct {
	Items []QueueItem `json:"items"`
}

type ListSessionsRequest struct {
	DeviceID string `json:"device_id"`
	Limit    int    `json:"limit,omitempty"`
}

type ListSessionsResponse struct {
	Sessions []Session `json:"sessions"`
}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}
