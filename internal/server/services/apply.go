package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/server/models"
	"github.com/dmitrijs2005/offsync/internal/server/records"
)

// applyItem replays the item's operation on the business repository.
func applyItem(ctx context.Context, repo records.Repository, item *models.QueueItem, at time.Time) error {
	switch p := item.Payload.(type) {
	case models.CreatePayload:
		_, err := repo.Upsert(ctx, item.RecordID, p.Fields, at)
		return err
	case models.UpdatePayload:
		_, err := repo.Merge(ctx, item.RecordID, p.Fields, at)
		return err
	case models.DeletePayload:
		return repo.SoftDelete(ctx, item.RecordID, at)
	case models.RestorePayload:
		return repo.Restore(ctx, item.RecordID, at)
	case models.BulkSyncPayload:
		for _, r := range p.Records {
			if _, err := repo.Merge(ctx, r.RecordID, r.Fields, at); err != nil {
				return fmt.Errorf("record %s: %w", r.RecordID, err)
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %T", models.ErrInvalidPayload, item.Payload)
}

// applyResolution writes the outcome of a settled conflict.
func applyResolution(ctx context.Context, repo records.Repository, c *models.Conflict, item *models.QueueItem, merged bool, at time.Time) error {
	if !merged {
		err := applyItem(ctx, repo, item, at)
		// deleting a record that is already gone settles nothing new
		if errors.Is(err, common.ErrorNotFound) && item.Operation == models.OpDelete {
			return nil
		}
		return err
	}

	data := maps.Clone(c.ResolutionData)
	active, hasActive := data["is_active"].(bool)
	delete(data, "is_active")

	if _, err := repo.Upsert(ctx, c.RecordID, data, at); err != nil {
		return err
	}
	if hasActive && !active {
		return repo.SoftDelete(ctx, c.RecordID, at)
	}
	return nil
}

// touchedRecords lists the record ids an item writes.
func touchedRecords(item *models.QueueItem) []string {
	if p, ok := item.Payload.(models.BulkSyncPayload); ok {
		ids := make([]string, 0, len(p.Records))
		for _, r := range p.Records {
			ids = append(ids, r.RecordID)
		}
		return ids
	}
	return []string{item.RecordID}
}
