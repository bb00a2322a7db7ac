package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/dbx"
	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/dmitrijs2005/offsync/internal/server/conflict"
	"github.com/dmitrijs2005/offsync/internal/server/models"
	"github.com/dmitrijs2005/offsync/internal/server/records"
	"github.com/dmitrijs2005/offsync/internal/server/repositories/repomanager"
)

// RoundRequest starts one sync round for a device.
type RoundRequest struct {
	DeviceID    string
	BatchSize   int
	Type        models.SessionType
	InitiatedBy string
}

// RoundResult reports what a round did.
type RoundResult struct {
	Session             *models.SyncSession
	Items               []models.QueueItem
	Counts              models.OutcomeCounts
	SuccessRate         float64
	UnresolvedConflicts []models.Conflict
}

// ResolveRequest settles a conflict by hand.
type ResolveRequest struct {
	ConflictID   string
	Strategy     models.ResolutionStrategy
	ResolvedBy   string
	Notes        string
	MergedFields map[string]any
}

// SyncService runs sync rounds: open a session, drain the queue, close the
// session. It also owns manual conflict resolution.
type SyncService struct {
	tx          dbx.Transactor
	repomanager repomanager.RepositoryManager
	registry    *records.Registry
	sessions    *SessionService
	queue       *QueueService
	cache       *CacheService
	archiver    Archiver
	locks       *deviceLocks
	logger      logging.Logger
	now         func() time.Time
}

func NewSyncService(tx dbx.Transactor, m repomanager.RepositoryManager, registry *records.Registry,
	sessions *SessionService, queue *QueueService, cache *CacheService, archiver Archiver, l logging.Logger) *SyncService {
	return &SyncService{
		tx:          tx,
		repomanager: m,
		registry:    registry,
		sessions:    sessions,
		queue:       queue,
		cache:       cache,
		archiver:    archiver,
		locks:       newDeviceLocks(),
		logger:      l.With("module", "sync"),
		now:         utcNow,
	}
}

// RunRound performs one sync round for the device. Only one round per device
// runs at a time; a concurrent call fails with common.ErrSessionInProgress.
func (s *SyncService) RunRound(ctx context.Context, req RoundRequest) (*RoundResult, error) {
	unlock, ok := s.locks.TryLock(req.DeviceID)
	if !ok {
		return nil, common.ErrSessionInProgress
	}
	defer unlock()

	session, err := s.sessions.Start(ctx, req.DeviceID, req.Type, req.InitiatedBy)
	if err != nil {
		return nil, err
	}

	items, err := s.queue.Drain(ctx, req.DeviceID, req.BatchSize)
	if err != nil {
		s.abort(ctx, session, err)
		return nil, fmt.Errorf("drain queue: %w", err)
	}

	done, err := s.sessions.Complete(ctx, session.ID)
	if err != nil {
		s.abort(ctx, session, err)
		return nil, fmt.Errorf("complete session: %w", err)
	}

	unresolved, err := s.repomanager.Conflicts(s.tx.Conn()).ListByDevice(ctx, req.DeviceID, true, 0)
	if err != nil {
		return nil, err
	}

	s.archive(ctx, done)

	return &RoundResult{
		Session:             done,
		Items:               items,
		Counts:              done.Summary.Counts,
		SuccessRate:         done.SuccessRate,
		UnresolvedConflicts: unresolved,
	}, nil
}

// Recover cleans up after rounds that a stopped server left behind: items
// still syncing become failed with one more attempt counted, and open
// sessions are failed so their devices return online.
func (s *SyncService) Recover(ctx context.Context) error {
	items, err := s.queue.FailStranded(ctx)
	if err != nil {
		return fmt.Errorf("fail stranded items: %w", err)
	}

	sessions, err := s.sessions.FailOpen(ctx, common.ErrRoundInterrupted)
	for _, session := range sessions {
		s.archive(ctx, session)
	}
	if err != nil {
		return err
	}

	if items > 0 || len(sessions) > 0 {
		s.logger.Info(ctx, "interrupted rounds recovered", "items", items, "sessions", len(sessions))
	}
	return nil
}

func (s *SyncService) abort(ctx context.Context, session *models.SyncSession, cause error) {
	// the round's own context may be the reason it aborted
	failed, err := s.sessions.Fail(context.WithoutCancel(ctx), session.ID, cause)
	if err != nil {
		s.logger.Error(ctx, "cannot fail session", "session_id", session.ID, "error", err, "cause", cause)
		return
	}
	s.archive(ctx, failed)
}

func (s *SyncService) archive(ctx context.Context, session *models.SyncSession) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.Archive(ctx, session); err != nil {
		s.logger.Warn(ctx, "session report not archived", "session_id", session.ID, "error", err)
	}
}

// ResolveConflict settles an open conflict, applies the winning data to the
// business table when the server side loses and records an audit entry.
func (s *SyncService) ResolveConflict(ctx context.Context, req ResolveRequest) (*models.Conflict, error) {
	if req.ConflictID == "" {
		return nil, fmt.Errorf("%w: conflict id is required", common.ErrInvalidArgument)
	}

	now := s.now()
	var (
		resolved *models.Conflict
		decision conflict.Decision
		priority models.Priority
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		conflicts := s.repomanager.Conflicts(tx)

		c, err := conflicts.GetForUpdate(ctx, req.ConflictID)
		if err != nil {
			return err
		}

		decision, err = conflict.Resolve(c, req.Strategy, req.ResolvedBy, req.Notes, req.MergedFields, now)
		if err != nil {
			return err
		}

		item, err := s.repomanager.Queue(tx).GetByID(ctx, c.QueueItemID)
		if err != nil {
			return err
		}
		priority = item.Priority

		if decision != conflict.KeepServer {
			repo, err := s.registry.Resolve(c.TableName, tx)
			if err != nil {
				return err
			}
			if err := applyResolution(ctx, repo, c, item, decision == conflict.ApplyMerged, now); err != nil {
				return fmt.Errorf("apply resolution: %w", err)
			}
		}

		if err := conflicts.Resolve(ctx, c); err != nil {
			return err
		}

		if err := s.repomanager.Audit(tx).Append(ctx, &models.AuditEntry{
			DeviceID: c.DeviceID,
			Action:   models.AuditConflictResolved,
			Details: map[string]any{
				"conflict_id": c.ID,
				"strategy":    string(c.Strategy),
				"resolved_by": c.ResolvedBy,
				"decision":    decision.String(),
			},
			CreatedAt: now,
		}); err != nil {
			return err
		}

		resolved = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "conflict resolved", "conflict_id", resolved.ID, "device_id", resolved.DeviceID,
		"strategy", resolved.Strategy, "decision", decision)

	if s.cache != nil {
		if err := s.cache.Refresh(ctx, resolved.DeviceID, resolved.TableName, resolved.RecordID, priority); err != nil && !errors.Is(err, common.ErrorNotFound) {
			s.logger.Warn(ctx, "cache write-through failed", "conflict_id", resolved.ID, "error", err)
		}
	}
	return resolved, nil
}

// ListConflicts returns the device's conflicts, newest first.
func (s *SyncService) ListConflicts(ctx context.Context, deviceID string, unresolvedOnly bool, limit int) ([]models.Conflict, error) {
	return s.repomanager.Conflicts(s.tx.Conn()).ListByDevice(ctx, deviceID, unresolvedOnly, limit)
}
