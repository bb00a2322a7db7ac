package grpc

import (
	"time"

	"github.com/dmitrijs2005/offsync/internal/api"
	"github.com/dmitrijs2005/offsync/internal/server/models"
)

func syncConfigFromAPI(c *api.SyncConfig) *models.SyncConfig {
	if c == nil {
		return nil
	}
	return &models.SyncConfig{
		AutoSync:          c.AutoSync,
		SyncFrequency:     time.Duration(c.SyncFrequencySeconds) * time.Second,
		MaxOfflineHours:   c.MaxOfflineHours,
		StorageLimitBytes: c.StorageLimitBytes,
	}
}

func deviceToAPI(d *models.Device) api.Device {
	return api.Device{
		ID:         d.ID,
		ExternalID: d.ExternalID,
		TenantID:   d.TenantID,
		Name:       d.Name,
		Platform:   d.Platform,
		AppVersion: d.AppVersion,
		Config: api.SyncConfig{
			AutoSync:             d.Config.AutoSync,
			SyncFrequencySeconds: int64(d.Config.SyncFrequency / time.Second),
			MaxOfflineHours:      d.Config.MaxOfflineHours,
			StorageLimitBytes:    d.Config.StorageLimitBytes,
		},
		Status:           string(d.Status),
		LastSeenAt:       d.LastSeenAt,
		LastSyncAt:       d.LastSyncAt,
		NextSyncAt:       d.NextSyncAt,
		StorageUsedBytes: d.StorageUsedBytes,
		CachedRecords:    d.CachedRecords,
	}
}

func bulkRecordsFromAPI(in []api.BulkRecord) []models.BulkRecord {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.BulkRecord, len(in))
	for i, r := range in {
		out[i] = models.BulkRecord{RecordID: r.RecordID, Fields: r.Fields}
	}
	return out
}

func queueItemToAPI(q *models.QueueItem) api.QueueItem {
	return api.QueueItem{
		ID:              q.ID,
		Seq:             q.Seq,
		Operation:       string(q.Operation),
		TableName:       q.TableName,
		RecordID:        q.RecordID,
		Priority:        string(q.Priority),
		Status:          string(q.Status),
		RetryCount:      q.RetryCount,
		MaxRetries:      q.MaxRetries,
		LastError:       q.LastError,
		ClientWatermark: q.ClientWatermark,
		CreatedAt:       q.CreatedAt,
		ProcessedAt:     q.ProcessedAt,
	}
}

func queueItemsToAPI(in []models.QueueItem) []api.QueueItem {
	out := make([]api.QueueItem, 0, len(in))
	for i := range in {
		out = append(out, queueItemToAPI(&in[i]))
	}
	return out
}

func conflictToAPI(c *models.Conflict) api.Conflict {
	return api.Conflict{
		ID:                   c.ID,
		QueueItemID:          c.QueueItemID,
		DeviceID:             c.DeviceID,
		TableName:            c.TableName,
		RecordID:             c.RecordID,
		Type:                 string(c.Type),
		ServerData:           c.ServerData,
		ClientData:           c.ClientData,
		ServerTimestamp:      c.ServerTimestamp,
		ClientTimestamp:      c.ClientTimestamp,
		Strategy:             string(c.Strategy),
		RequiresManualReview: c.RequiresManualReview,
		Resolved:             c.Resolved,
		ResolutionData:       c.ResolutionData,
		ResolvedBy:           c.ResolvedBy,
		ResolutionNotes:      c.ResolutionNotes,
		ResolvedAt:           c.ResolvedAt,
		CreatedAt:            c.CreatedAt,
	}
}

func conflictsToAPI(in []models.Conflict) []api.Conflict {
	out := make([]api.Conflict, 0, len(in))
	for i := range in {
		out = append(out, conflictToAPI(&in[i]))
	}
	return out
}

func countsToAPI(c models.OutcomeCounts) api.OutcomeCounts {
	return api.OutcomeCounts{
		Completed: c.Completed,
		Failed:    c.Failed,
		Conflict:  c.Conflict,
		Skipped:   c.Skipped,
		Exhausted: c.Exhausted,
	}
}

func sessionToAPI(s *models.SyncSession) api.Session {
	return api.Session{
		ID:                  s.ID,
		DeviceID:            s.DeviceID,
		Type:                string(s.Type),
		Status:              string(s.Status),
		InitiatedBy:         s.InitiatedBy,
		TotalOperations:     s.TotalOperations,
		CompletedOperations: s.CompletedOperations,
		FailedOperations:    s.FailedOperations,
		ConflictOperations:  s.ConflictOperations,
		SuccessRate:         s.SuccessRate,
		Counts:              countsToAPI(s.Summary.Counts),
		UnresolvedConflicts: s.Summary.UnresolvedConflicts,
		Error:               s.Summary.Error,
		StartedAt:           s.StartedAt,
		CompletedAt:         s.CompletedAt,
		NextSyncAt:          s.NextSyncAt,
	}
}
