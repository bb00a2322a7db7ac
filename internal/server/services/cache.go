package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/cryptox"
	"github.com/dmitrijs2005/offsync/internal/dbx"
	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/dmitrijs2005/offsync/internal/server/config"
	"github.com/dmitrijs2005/offsync/internal/server/models"
	"github.com/dmitrijs2005/offsync/internal/server/records"
	"github.com/dmitrijs2005/offsync/internal/server/repositories/repomanager"
)

// PutRequest is one cache write.
type PutRequest struct {
	DeviceID string
	Table    string
	RecordID string
	Data     map[string]any
	Priority models.Priority
	Critical bool
}

// CacheService keeps the server-side mirror of what each device holds
// offline.
type CacheService struct {
	tx          dbx.Transactor
	repomanager repomanager.RepositoryManager
	registry    *records.Registry
	ttl         time.Duration
	logger      logging.Logger
	now         func() time.Time
}

func NewCacheService(tx dbx.Transactor, m repomanager.RepositoryManager, registry *records.Registry, cfg *config.Config, l logging.Logger) *CacheService {
	return &CacheService{
		tx:          tx,
		repomanager: m,
		registry:    registry,
		ttl:         cfg.CacheTTL,
		logger:      l.With("module", "cache"),
		now:         utcNow,
	}
}

// Put upserts a cache entry and recomputes the device's storage statistics.
// Non-critical entries that would push the device past its storage limit
// are refused with common.ErrStorageLimitExceeded.
func (s *CacheService) Put(ctx context.Context, req PutRequest) (*models.CacheEntry, error) {
	if req.DeviceID == "" || req.Table == "" || req.RecordID == "" {
		return nil, fmt.Errorf("%w: cache key is incomplete", common.ErrInvalidArgument)
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if !req.Priority.Valid() {
		return nil, fmt.Errorf("%w: priority %q", common.ErrInvalidArgument, req.Priority)
	}

	hash, size, err := cryptox.ContentHash(req.Data)
	if err != nil {
		return nil, err
	}

	now := s.now()
	entry := &models.CacheEntry{
		DeviceID:       req.DeviceID,
		TableName:      req.Table,
		RecordID:       req.RecordID,
		Data:           req.Data,
		ContentHash:    hash,
		SizeBytes:      size,
		Priority:       req.Priority,
		IsCritical:     req.Critical,
		LastAccessedAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if !req.Critical && s.ttl > 0 {
		expires := now.Add(s.ttl)
		entry.ExpiresAt = &expires
	}

	var stored *models.CacheEntry
	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		devices := s.repomanager.Devices(tx)

		// the row lock serializes concurrent puts for one device
		device, err := devices.GetForUpdate(ctx, req.DeviceID)
		if err != nil {
			return err
		}

		cache := s.repomanager.Cache(tx)
		if limit := device.Config.StorageLimitBytes; !req.Critical && limit > 0 {
			others, err := cache.SizeExcluding(ctx, req.DeviceID, req.Table, req.RecordID)
			if err != nil {
				return err
			}
			if others+size > limit {
				return fmt.Errorf("%w: %d of %d bytes", common.ErrStorageLimitExceeded, others+size, limit)
			}
		}

		stored, err = cache.Upsert(ctx, entry)
		if err != nil {
			return err
		}

		_, err = devices.RecomputeStorage(ctx, req.DeviceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// Get returns the cached entry, reading through from the business table when
// the entry is missing or expired. Every hit bumps access_frequency.
func (s *CacheService) Get(ctx context.Context, deviceID, table, recordID string) (*models.CacheEntry, error) {
	conn := s.tx.Conn()
	cache := s.repomanager.Cache(conn)
	now := s.now()

	entry, err := cache.Get(ctx, deviceID, table, recordID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	if entry == nil || entry.Expired(now) {
		req := PutRequest{DeviceID: deviceID, Table: table, RecordID: recordID, Priority: models.PriorityMedium}
		if entry != nil {
			req.Priority = entry.Priority
			req.Critical = entry.IsCritical
		}

		repo, err := s.registry.Resolve(table, conn)
		if err != nil {
			return nil, err
		}
		rec, err := repo.Get(ctx, recordID)
		if err != nil {
			return nil, err
		}
		req.Data = rec.Data

		entry, err = s.Put(ctx, req)
		if err != nil {
			return nil, err
		}
		s.logger.Debug(ctx, "cache read-through", "device_id", deviceID, "table", table, "record_id", recordID)
	}

	if err := cache.TouchAccess(ctx, deviceID, table, recordID, now); err != nil {
		return nil, err
	}
	entry.AccessFrequency++
	entry.LastAccessedAt = now
	return entry, nil
}

// MarkDirty flags a cached record as locally modified on the device.
func (s *CacheService) MarkDirty(ctx context.Context, deviceID, table, recordID string) error {
	return s.repomanager.Cache(s.tx.Conn()).SetDirty(ctx, deviceID, table, recordID, true, s.now())
}

// Refresh writes the current server state of a record through to the
// device's cache after the server state changed, clearing its dirty flag.
// An existing entry keeps its priority and critical flag; a new one takes
// priority and is critical when priority is critical.
func (s *CacheService) Refresh(ctx context.Context, deviceID, table, recordID string, priority models.Priority) error {
	conn := s.tx.Conn()

	req := PutRequest{
		DeviceID: deviceID,
		Table:    table,
		RecordID: recordID,
		Priority: priority,
		Critical: priority == models.PriorityCritical,
	}

	entry, err := s.repomanager.Cache(conn).Get(ctx, deviceID, table, recordID)
	switch {
	case err == nil:
		req.Priority, req.Critical = entry.Priority, entry.IsCritical
	case !errors.Is(err, common.ErrorNotFound):
		return err
	}

	repo, err := s.registry.Resolve(table, conn)
	if err != nil {
		return err
	}
	rec, err := repo.Get(ctx, recordID)
	if err != nil {
		return err
	}

	req.Data = rec.Data
	if !rec.IsActive {
		req.Data = withInactive(rec.Data)
	}

	_, err = s.Put(ctx, req)
	return err
}

func withInactive(data map[string]any) map[string]any {
	out := maps.Clone(data)
	if out == nil {
		out = make(map[string]any, 1)
	}
	out["is_active"] = false
	return out
}

// EvictExpired deletes non-critical entries past their expiry and
// recomputes storage statistics for every affected device.
func (s *CacheService) EvictExpired(ctx context.Context) (int, error) {
	conn := s.tx.Conn()

	removed, devices, err := s.repomanager.Cache(conn).DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}

	repo := s.repomanager.Devices(conn)
	for _, id := range devices {
		if _, err := repo.RecomputeStorage(ctx, id); err != nil {
			return removed, fmt.Errorf("recompute storage for %s: %w", id, err)
		}
	}

	if removed > 0 {
		s.logger.Info(ctx, "expired cache entries evicted", "removed", removed, "devices", len(devices))
	}
	return removed, nil
}
