package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/offsync/internal/api"
	"github.com/dmitrijs2005/offsync/internal/client/client"
	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/offsync/internal/client/repositories/outbox"
	"github.com/dmitrijs2005/offsync/internal/logging"
	syncmodels "github.com/dmitrijs2005/offsync/internal/server/models"
)

const flushPageSize = 100

var ErrInvalidEntry = errors.New("invalid outbox entry")

type OutboxService struct {
	client client.Client
	outbox outbox.Repository
	meta   metadata.Repository
	logger logging.Logger
	now    func() time.Time
}

func NewOutboxService(c client.Client, ob outbox.Repository, meta metadata.Repository, logger logging.Logger) *OutboxService {
	return &OutboxService{client: c, outbox: ob, meta: meta, logger: logger.With("module", "outbox"), now: time.Now}
}

func validateEntry(e *models.OutboxEntry) error {
	op := syncmodels.Operation(e.Operation)
	if !op.Valid() {
		return fmt.Errorf("%w: unknown operation %q", ErrInvalidEntry, e.Operation)
	}
	if e.TableName == "" {
		return fmt.Errorf("%w: table is required", ErrInvalidEntry)
	}
	if op != syncmodels.OpBulkSync && e.RecordID == "" {
		return fmt.Errorf("%w: record id is required", ErrInvalidEntry)
	}
	if e.Priority != "" && !syncmodels.Priority(e.Priority).Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidEntry, e.Priority)
	}

	records := make([]syncmodels.BulkRecord, len(e.Records))
	for i, r := range e.Records {
		records[i] = syncmodels.BulkRecord{RecordID: r.RecordID, Fields: r.Fields}
	}
	if _, err := syncmodels.NewPayload(op, e.Fields, records, e.Reason); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, err)
	}
	return nil
}

// Record stores an operation locally. It never talks to the server, so it
// works offline.
func (s *OutboxService) Record(ctx context.Context, e *models.OutboxEntry) error {
	if err := validateEntry(e); err != nil {
		return err
	}
	if err := s.outbox.Add(ctx, e); err != nil {
		return fmt.Errorf("error saving outbox entry: %w", err)
	}
	s.logger.Debug(ctx, "operation recorded", "id", e.ID, "seq", e.Seq, "operation", e.Operation)
	return nil
}

func (s *OutboxService) List(ctx context.Context, status models.OutboxStatus, limit int) ([]models.OutboxEntry, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("unknown outbox status %q", status)
	}
	return s.outbox.List(ctx, status, limit)
}

// FlushReport counts what one Flush did. Remaining is the number of entries
// still pending afterwards.
type FlushReport struct {
	Sent      int
	Rejected  int
	Remaining int
	// Err is the transient error that stopped the flush, if any.
	Err error
}

// Flush pushes pending entries to the server in the order they were
// recorded. A rejected entry is marked and skipped. A transient failure stops
// the flush and leaves that entry and everything after it pending.
func (s *OutboxService) Flush(ctx context.Context) (*FlushReport, error) {
	deviceID := s.client.DeviceID()
	if deviceID == "" {
		return nil, client.ErrNotRegistered
	}

	report := &FlushReport{}

loop:
	for {
		pending, err := s.outbox.Pending(ctx, flushPageSize)
		if err != nil {
			return nil, err
		}
		if len(pending) == 0 {
			break
		}

		for i := range pending {
			e := &pending[i]
			itemID, err := s.client.Enqueue(ctx, e.Request(deviceID))

			switch {
			case err == nil:
				if err := s.outbox.MarkSent(ctx, e.ID, itemID, s.now()); err != nil {
					return nil, err
				}
				report.Sent++
			case errors.Is(err, client.ErrRejected):
				s.logger.Warn(ctx, "operation rejected", "id", e.ID, "error", err)
				if err := s.outbox.MarkRejected(ctx, e.ID, err.Error()); err != nil {
					return nil, err
				}
				report.Rejected++
			default:
				if rerr := s.outbox.RecordAttempt(ctx, e.ID, err.Error()); rerr != nil {
					return nil, rerr
				}
				report.Err = err
				break loop
			}
		}
	}

	counts, err := s.outbox.Counts(ctx)
	if err != nil {
		return nil, err
	}
	report.Remaining = counts[models.OutboxPending]

	s.logger.Info(ctx, "outbox flushed", "sent", report.Sent, "rejected", report.Rejected, "remaining", report.Remaining)
	return report, nil
}

type SyncReport struct {
	Flush *FlushReport
	Round *api.RunSyncRoundResponse
}

// Sync flushes the outbox and asks the server to drain it. When the flush is
// cut short by a transient error, that error is returned with the partial
// report and no round is run.
func (s *OutboxService) Sync(ctx context.Context, batchSize int) (*SyncReport, error) {
	flush, err := s.Flush(ctx)
	if err != nil {
		return nil, err
	}
	report := &SyncReport{Flush: flush}
	if flush.Err != nil {
		return report, flush.Err
	}

	report.Round, err = s.client.RunSyncRound(ctx, &api.RunSyncRoundRequest{
		DeviceID:    s.client.DeviceID(),
		BatchSize:   batchSize,
		SessionType: string(syncmodels.SessionManual),
	})
	if err != nil {
		return report, err
	}

	if err := s.meta.Set(ctx, metadata.KeyLastSyncAt, s.now().UTC().Format(time.RFC3339Nano)); err != nil {
		return report, err
	}

	return report, nil
}
