package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/dbx"
	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/dmitrijs2005/offsync/internal/server/config"
	"github.com/dmitrijs2005/offsync/internal/server/conflict"
	"github.com/dmitrijs2005/offsync/internal/server/models"
	"github.com/dmitrijs2005/offsync/internal/server/records"
	"github.com/dmitrijs2005/offsync/internal/server/repositories/repomanager"
)

// bulkRecordID is stored as record_id for BULK_SYNC items.
const bulkRecordID = "*"

// EnqueueRequest describes one client operation to queue.
type EnqueueRequest struct {
	DeviceID        string
	Operation       models.Operation
	TableName       string
	RecordID        string
	Payload         models.Payload
	Priority        models.Priority
	ClientWatermark *time.Time
}

// QueueService is the per-device sync queue.
type QueueService struct {
	tx          dbx.Transactor
	repomanager repomanager.RepositoryManager
	registry    *records.Registry
	cache       *CacheService
	batchSize   int
	maxRetries  int
	logger      logging.Logger
	now         func() time.Time
}

// NewQueueService wires the queue. cache may be nil, which disables cache
// write-through after applied items.
func NewQueueService(tx dbx.Transactor, m repomanager.RepositoryManager, registry *records.Registry, cache *CacheService, cfg *config.Config, l logging.Logger) *QueueService {
	return &QueueService{
		tx:          tx,
		repomanager: m,
		registry:    registry,
		cache:       cache,
		batchSize:   cfg.DefaultBatchSize,
		maxRetries:  cfg.DefaultMaxRetries,
		logger:      l.With("module", "queue"),
		now:         utcNow,
	}
}

func (r *EnqueueRequest) validate() error {
	if r.DeviceID == "" {
		return fmt.Errorf("%w: device id is required", common.ErrInvalidArgument)
	}
	if !r.Operation.Valid() {
		return fmt.Errorf("%w: operation %q", common.ErrInvalidArgument, r.Operation)
	}
	if r.TableName == "" {
		return fmt.Errorf("%w: table is required", common.ErrInvalidArgument)
	}
	if r.Payload == nil || r.Payload.Op() != r.Operation {
		return fmt.Errorf("%w: payload does not match %s", common.ErrInvalidArgument, r.Operation)
	}
	if r.Priority != "" && !r.Priority.Valid() {
		return fmt.Errorf("%w: priority %q", common.ErrInvalidArgument, r.Priority)
	}
	if r.RecordID == "" && r.Operation != models.OpBulkSync {
		return fmt.Errorf("%w: record id is required", common.ErrInvalidArgument)
	}
	return nil
}

// Enqueue stores a pending item for the device and returns its id.
func (s *QueueService) Enqueue(ctx context.Context, req EnqueueRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}
	if !s.registry.Has(req.TableName) {
		return "", fmt.Errorf("%w: %s", common.ErrUnknownTable, req.TableName)
	}

	conn := s.tx.Conn()

	device, err := s.repomanager.Devices(conn).GetByID(ctx, req.DeviceID)
	if err != nil {
		return "", err
	}
	if device.Status == models.DeviceDisabled {
		return "", common.ErrDeviceDisabled
	}

	item := &models.QueueItem{
		DeviceID:        req.DeviceID,
		Operation:       req.Operation,
		TableName:       req.TableName,
		RecordID:        req.RecordID,
		Payload:         req.Payload,
		Priority:        req.Priority,
		Status:          models.QueuePending,
		MaxRetries:      s.maxRetries,
		ClientWatermark: req.ClientWatermark,
		CreatedAt:       s.now(),
	}
	if item.Priority == "" {
		item.Priority = models.PriorityMedium
	}
	if item.Operation == models.OpBulkSync && item.RecordID == "" {
		item.RecordID = bulkRecordID
	}

	conflicts := s.repomanager.Conflicts(conn)
	for _, id := range touchedRecords(item) {
		open, err := conflicts.HasUnresolved(ctx, req.DeviceID, req.TableName, id)
		if err != nil {
			return "", err
		}
		if open {
			return "", fmt.Errorf("%w: %s/%s", common.ErrRecordHasOpenConflict, req.TableName, id)
		}
	}

	if err := s.repomanager.Queue(conn).Insert(ctx, item); err != nil {
		return "", err
	}
	s.markDirty(ctx, item)

	s.logger.Debug(ctx, "item enqueued", "device_id", item.DeviceID, "item_id", item.ID,
		"operation", item.Operation, "table", item.TableName, "record_id", item.RecordID, "priority", item.Priority)
	return item.ID, nil
}

// Drain claims up to batchSize eligible items of the device and processes
// them one by one, each in its own transaction. A failing item never stops
// the batch. The returned items carry their final status.
func (s *QueueService) Drain(ctx context.Context, deviceID string, batchSize int) ([]models.QueueItem, error) {
	if batchSize <= 0 {
		batchSize = s.batchSize
	}

	items, err := s.repomanager.Queue(s.tx.Conn()).Claim(ctx, deviceID, batchSize, s.now())
	if err != nil {
		return nil, err
	}

	for i := range items {
		if err := ctx.Err(); err != nil {
			s.release(ctx, items[i:], err)
			return items, err
		}
		s.process(ctx, &items[i])
	}
	return items, nil
}

// release marks claimed items that were never processed as failed so a
// later round picks them up again.
func (s *QueueService) release(ctx context.Context, items []models.QueueItem, cause error) {
	cause = fmt.Errorf("%w: %w", common.ErrRoundInterrupted, cause)
	for i := range items {
		log := s.logger.With("device_id", items[i].DeviceID, "item_id", items[i].ID)
		s.fail(ctx, log, &items[i], cause)
	}
}

// FailStranded fails every item left syncing by a round that never
// finished, typically because the server stopped mid-round.
func (s *QueueService) FailStranded(ctx context.Context) (int, error) {
	n, err := s.repomanager.Queue(s.tx.Conn()).FailStranded(ctx, common.ErrRoundInterrupted.Error(), s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Warn(ctx, "stranded items failed", "count", n)
	}
	return n, nil
}

func (s *QueueService) process(ctx context.Context, item *models.QueueItem) {
	log := s.logger.With("device_id", item.DeviceID, "item_id", item.ID, "operation", item.Operation, "table", item.TableName)

	if !s.registry.Has(item.TableName) {
		s.finishOutside(ctx, log, item, models.QueueSkipped, "table is no longer synced")
		return
	}

	now := s.now()
	var (
		detected *models.Conflict
		blocked  string
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		// a conflict opened earlier in this drain holds later items for the record
		id, err := s.openConflict(ctx, tx, item)
		if err != nil {
			return err
		}
		if id != "" {
			blocked = fmt.Sprintf("%s: %s/%s", common.ErrRecordHasOpenConflict, item.TableName, id)
			return s.repomanager.Queue(tx).Finish(ctx, item.ID, models.QueueSkipped, blocked, now)
		}

		repo, err := s.registry.Resolve(item.TableName, tx)
		if err != nil {
			return err
		}

		var server *records.Record
		if item.Operation.Watermarked() {
			server, err = repo.Get(ctx, item.RecordID)
			if errors.Is(err, common.ErrorNotFound) {
				server, err = nil, nil
			}
			if err != nil {
				return &common.QueueItemApplyError{ItemID: item.ID, Operation: string(item.Operation), Err: err}
			}
		}

		if c := conflict.Detect(item, server); c != nil {
			c.CreatedAt = now
			if conflict.AutoResolve(c, now) && c.Strategy == models.StrategyClientWins {
				if err := applyItem(ctx, repo, item, now); err != nil {
					return &common.QueueItemApplyError{ItemID: item.ID, Operation: string(item.Operation), Err: err}
				}
			}
			if err := s.repomanager.Conflicts(tx).Create(ctx, c); err != nil {
				return err
			}
			if err := s.repomanager.Queue(tx).Finish(ctx, item.ID, models.QueueConflict, "", now); err != nil {
				return err
			}
			detected = c
			return nil
		}

		if err := applyItem(ctx, repo, item, now); err != nil {
			return &common.QueueItemApplyError{ItemID: item.ID, Operation: string(item.Operation), Err: err}
		}
		return s.repomanager.Queue(tx).Finish(ctx, item.ID, models.QueueCompleted, "", now)
	})

	if err != nil {
		s.fail(ctx, log, item, err)
		return
	}

	item.ProcessedAt = &now
	item.UpdatedAt = now

	if blocked != "" {
		item.Status = models.QueueSkipped
		item.LastError = blocked
		log.Warn(ctx, "item skipped", "reason", blocked)
		return
	}

	if detected != nil {
		item.Status = models.QueueConflict
		log.Info(ctx, "conflict detected", "conflict_id", detected.ID, "type", detected.Type,
			"strategy", detected.Strategy, "resolved", detected.Resolved)
		if detected.Resolved {
			s.writeThrough(ctx, log, item)
		}
		return
	}

	item.Status = models.QueueCompleted
	log.Debug(ctx, "item applied")
	s.writeThrough(ctx, log, item)
}

// openConflict returns the first record touched by item that has an
// unresolved conflict on the item's device, or "".
func (s *QueueService) openConflict(ctx context.Context, tx dbx.DBTX, item *models.QueueItem) (string, error) {
	conflicts := s.repomanager.Conflicts(tx)
	for _, id := range touchedRecords(item) {
		open, err := conflicts.HasUnresolved(ctx, item.DeviceID, item.TableName, id)
		if err != nil {
			return "", err
		}
		if open {
			return id, nil
		}
	}
	return "", nil
}

func (s *QueueService) fail(ctx context.Context, log logging.Logger, item *models.QueueItem, cause error) {
	// a cancelled round must still record the outcome
	failed, err := s.repomanager.Queue(s.tx.Conn()).MarkFailed(context.WithoutCancel(ctx), item.ID, cause.Error(), s.now())
	if err != nil {
		log.Error(ctx, "cannot mark item failed", "error", err, "cause", cause)
		return
	}
	*item = *failed

	var applyErr *common.QueueItemApplyError
	if errors.As(cause, &applyErr) {
		log.Warn(ctx, "apply failed", "error", cause, "retry_count", item.RetryCount, "max_retries", item.MaxRetries)
	} else {
		log.Error(ctx, "item processing failed", "error", cause, "retry_count", item.RetryCount)
	}
	if !item.RetriesLeft() {
		log.Warn(ctx, "item retries exhausted", "retry_count", item.RetryCount)
	}
}

func (s *QueueService) finishOutside(ctx context.Context, log logging.Logger, item *models.QueueItem, to models.QueueStatus, reason string) {
	now := s.now()
	if err := s.repomanager.Queue(s.tx.Conn()).Finish(context.WithoutCancel(ctx), item.ID, to, reason, now); err != nil {
		log.Error(ctx, "cannot finish item", "status", to, "error", err)
		return
	}
	item.Status = to
	item.LastError = reason
	item.ProcessedAt = &now
	item.UpdatedAt = now
	log.Warn(ctx, "item skipped", "reason", reason)
}

func (s *QueueService) writeThrough(ctx context.Context, log logging.Logger, item *models.QueueItem) {
	if s.cache == nil {
		return
	}
	for _, id := range touchedRecords(item) {
		err := s.cache.Refresh(ctx, item.DeviceID, item.TableName, id, item.Priority)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			log.Warn(ctx, "cache write-through failed", "record_id", id, "error", err)
		}
	}
}

// markDirty flags the device's cached copies of the records an item
// changes until the item is applied and written through.
func (s *QueueService) markDirty(ctx context.Context, item *models.QueueItem) {
	if s.cache == nil {
		return
	}
	for _, id := range touchedRecords(item) {
		err := s.cache.MarkDirty(ctx, item.DeviceID, item.TableName, id)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			s.logger.Warn(ctx, "cannot mark cache entry dirty", "device_id", item.DeviceID, "record_id", id, "error", err)
		}
	}
}

// List returns the device's queue items, optionally filtered by status.
func (s *QueueService) List(ctx context.Context, deviceID string, filter models.ItemFilter) ([]models.QueueItem, error) {
	if filter.Status != "" && !validQueueStatus(filter.Status) {
		return nil, fmt.Errorf("%w: status %q", common.ErrInvalidArgument, filter.Status)
	}
	return s.repomanager.Queue(s.tx.Conn()).ListByDevice(ctx, deviceID, filter)
}

func validQueueStatus(st models.QueueStatus) bool {
	switch st {
	case models.QueuePending, models.QueueSyncing, models.QueueCompleted,
		models.QueueFailed, models.QueueConflict, models.QueueSkipped:
		return true
	}
	return false
}
