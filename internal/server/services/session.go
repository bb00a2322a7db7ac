package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/dbx"
	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/dmitrijs2005/offsync/internal/server/models"
	"github.com/dmitrijs2005/offsync/internal/server/repositories/repomanager"
)

// summaryConflictLimit caps the unresolved conflict ids kept in a summary.
const summaryConflictLimit = 50

// SessionService opens and closes sync sessions and keeps the device status
// in step with them.
type SessionService struct {
	tx          dbx.Transactor
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	now         func() time.Time
}

func NewSessionService(tx dbx.Transactor, m repomanager.RepositoryManager, l logging.Logger) *SessionService {
	return &SessionService{
		tx:          tx,
		repomanager: m,
		logger:      l.With("module", "sessions"),
		now:         utcNow,
	}
}

// Start opens a session, snapshots the eligible item count as
// total_operations and moves the device to syncing.
func (s *SessionService) Start(ctx context.Context, deviceID string, typ models.SessionType, initiator string) (*models.SyncSession, error) {
	if typ == "" {
		typ = models.SessionIncremental
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: session type %q", common.ErrInvalidArgument, typ)
	}

	now := s.now()
	session := &models.SyncSession{
		DeviceID:    deviceID,
		Type:        typ,
		InitiatedBy: initiator,
		StartedAt:   now,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		devices := s.repomanager.Devices(tx)

		device, err := devices.GetForUpdate(ctx, deviceID)
		if err != nil {
			return err
		}
		switch {
		case device.Status == models.DeviceSyncing:
			return common.ErrSessionInProgress
		case device.Status == models.DeviceDisabled:
			return common.ErrDeviceDisabled
		case !device.Status.Available():
			return fmt.Errorf("%w: status %s", common.ErrDeviceUnavailable, device.Status)
		}

		total, err := s.repomanager.Queue(tx).CountEligible(ctx, deviceID)
		if err != nil {
			return err
		}
		session.TotalOperations = total

		if err := s.repomanager.Sessions(tx).Open(ctx, session); err != nil {
			return err
		}
		return devices.SetStatus(ctx, deviceID, models.DeviceSyncing, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "session started", "device_id", deviceID, "session_id", session.ID,
		"type", typ, "total_operations", session.TotalOperations)
	return session, nil
}

// Complete closes an open session with the outcomes of the items processed
// since it started, returns the device online and schedules its next sync.
func (s *SessionService) Complete(ctx context.Context, sessionID string) (*models.SyncSession, error) {
	now := s.now()
	var session *models.SyncSession

	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		session, err = s.openSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}

		counts, err := s.repomanager.Queue(tx).CountOutcomesSince(ctx, session.DeviceID, session.StartedAt)
		if err != nil {
			return err
		}
		unresolved, err := s.repomanager.Conflicts(tx).ListByDevice(ctx, session.DeviceID, true, summaryConflictLimit)
		if err != nil {
			return err
		}

		device, err := s.repomanager.Devices(tx).GetByID(ctx, session.DeviceID)
		if err != nil {
			return err
		}
		var next *time.Time
		if device.Config.AutoSync && device.Config.SyncFrequency > 0 {
			t := now.Add(device.Config.SyncFrequency)
			next = &t
		}

		session.Status = models.SessionCompleted
		session.CompletedOperations = counts.Completed
		session.FailedOperations = counts.Failed
		session.ConflictOperations = counts.Conflict
		session.SuccessRate = models.SuccessRate(counts.Completed, session.TotalOperations)
		session.Summary = models.SessionSummary{Counts: counts}
		for _, c := range unresolved {
			session.Summary.UnresolvedConflicts = append(session.Summary.UnresolvedConflicts, c.ID)
		}
		session.CompletedAt = &now
		session.NextSyncAt = next

		if err := s.repomanager.Sessions(tx).Close(ctx, session); err != nil {
			return err
		}
		return s.repomanager.Devices(tx).MarkSyncCompleted(ctx, session.DeviceID, now, next)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "session completed", "device_id", session.DeviceID, "session_id", session.ID,
		"completed", session.CompletedOperations, "failed", session.FailedOperations,
		"conflict", session.ConflictOperations, "success_rate", session.SuccessRate)
	return session, nil
}

// Fail closes an open session as failed and returns the device online.
func (s *SessionService) Fail(ctx context.Context, sessionID string, cause error) (*models.SyncSession, error) {
	now := s.now()
	var session *models.SyncSession

	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		session, err = s.openSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}

		counts, err := s.repomanager.Queue(tx).CountOutcomesSince(ctx, session.DeviceID, session.StartedAt)
		if err != nil {
			return err
		}

		session.Status = models.SessionFailed
		session.CompletedOperations = counts.Completed
		session.FailedOperations = counts.Failed
		session.ConflictOperations = counts.Conflict
		session.SuccessRate = models.SuccessRate(counts.Completed, session.TotalOperations)
		session.Summary = models.SessionSummary{Counts: counts}
		if cause != nil {
			session.Summary.Error = cause.Error()
		}
		session.CompletedAt = &now

		if err := s.repomanager.Sessions(tx).Close(ctx, session); err != nil {
			return err
		}
		return s.repomanager.Devices(tx).SetStatus(ctx, session.DeviceID, models.DeviceOnline, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Warn(ctx, "session failed", "device_id", session.DeviceID, "session_id", session.ID, "cause", cause)
	return session, nil
}

// FailOpen closes every session still open as failed with cause. It runs
// at startup, before any round can hold a session legitimately.
func (s *SessionService) FailOpen(ctx context.Context, cause error) ([]*models.SyncSession, error) {
	open, err := s.repomanager.Sessions(s.tx.Conn()).ListOpen(ctx)
	if err != nil {
		return nil, err
	}

	failed := make([]*models.SyncSession, 0, len(open))
	for _, o := range open {
		f, err := s.Fail(ctx, o.ID, cause)
		if err != nil {
			return failed, fmt.Errorf("fail session %s: %w", o.ID, err)
		}
		failed = append(failed, f)
	}
	return failed, nil
}

func (s *SessionService) openSession(ctx context.Context, tx dbx.DBTX, sessionID string) (*models.SyncSession, error) {
	session, err := s.repomanager.Sessions(tx).GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionSyncing {
		return nil, fmt.Errorf("%w: session %s is %s", common.ErrSessionNotFound, sessionID, session.Status)
	}
	return session, nil
}

// List returns the device's most recent sessions.
func (s *SessionService) List(ctx context.Context, deviceID string, limit int) ([]models.SyncSession, error) {
	return s.repomanager.Sessions(s.tx.Conn()).ListByDevice(ctx, deviceID, limit)
}
