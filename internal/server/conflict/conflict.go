// Package conflict detects divergent concurrent edits by comparing
// watermarks and decides how they are resolved. Everything here is pure:
// no I/O, no clock reads.
package conflict

import (
	"fmt"
	"maps"
	"time"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/server/models"
	"github.com/dmitrijs2005/offsync/internal/server/records"
)

// Detect returns the conflict between item and the server snapshot, or nil.
// Only UPDATE and DELETE carry watermarks. A nil server record is a
// missing_record conflict; an item without a client watermark conflicts
// whenever the record exists, since the client cannot prove it saw the
// current version.
func Detect(item *models.QueueItem, server *records.Record) *models.Conflict {
	if !item.Operation.Watermarked() {
		return nil
	}

	c := &models.Conflict{
		QueueItemID:     item.ID,
		DeviceID:        item.DeviceID,
		TableName:       item.TableName,
		RecordID:        item.RecordID,
		ClientData:      models.ClientData(item.Payload),
		ClientTimestamp: item.ClientWatermark,
	}

	if server == nil {
		c.Type = models.ConflictMissingRecord
		return c
	}

	if item.ClientWatermark != nil && !server.UpdatedAt.After(*item.ClientWatermark) {
		return nil
	}

	serverTS := server.UpdatedAt
	c.ServerTimestamp = &serverTS
	c.ServerData = serverState(server)
	c.Type = models.ConflictUpdateUpdate
	if item.Operation == models.OpDelete || !server.IsActive {
		c.Type = models.ConflictUpdateDelete
	}
	return c
}

func serverState(r *records.Record) map[string]any {
	out := make(map[string]any, len(r.Data)+1)
	maps.Copy(out, r.Data)
	out["is_active"] = r.IsActive
	return out
}

// AutoResolve applies the automatic policy to c and reports whether it was
// resolved. The newer side wins; ties, missing records and missing data on
// either side are flagged for manual review and left unresolved.
func AutoResolve(c *models.Conflict, now time.Time) bool {
	if c.Type == models.ConflictMissingRecord || c.ServerData == nil || c.ClientData == nil ||
		c.ServerTimestamp == nil || c.ClientTimestamp == nil {
		flagManual(c)
		return false
	}

	switch {
	case c.ServerTimestamp.After(*c.ClientTimestamp):
		settle(c, models.StrategyServerWins, c.ServerData, common.SystemResolver, "", now)
	case c.ClientTimestamp.After(*c.ServerTimestamp):
		settle(c, models.StrategyClientWins, c.ClientData, common.SystemResolver, "", now)
	default:
		flagManual(c)
		return false
	}
	return true
}

func flagManual(c *models.Conflict) {
	c.Strategy = models.StrategyManualReview
	c.RequiresManualReview = true
	c.Resolved = false
}

func settle(c *models.Conflict, s models.ResolutionStrategy, data map[string]any, by, notes string, now time.Time) {
	at := now
	c.Strategy = s
	c.Resolved = true
	c.RequiresManualReview = false
	c.ResolutionData = data
	c.ResolvedBy = by
	c.ResolutionNotes = notes
	c.ResolvedAt = &at
}

// Decision says what the caller must do to the business record after a
// resolution.
type Decision int

const (
	// KeepServer leaves the business record untouched.
	KeepServer Decision = iota
	// ApplyClient replays the client's queued operation.
	ApplyClient
	// ApplyMerged writes Conflict.ResolutionData as the new record state.
	ApplyMerged
)

func (d Decision) String() string {
	switch d {
	case KeepServer:
		return "keep_server"
	case ApplyClient:
		return "apply_client"
	case ApplyMerged:
		return "apply_merged"
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

// Resolve settles c manually. merged is overlaid on top of server and client
// data for the merge strategy and ignored otherwise.
func Resolve(c *models.Conflict, strategy models.ResolutionStrategy, resolver, notes string, merged map[string]any, now time.Time) (Decision, error) {
	if c.Resolved {
		return KeepServer, common.ErrConflictAlreadyResolved
	}
	if resolver == "" {
		return KeepServer, fmt.Errorf("%w: resolver is required", common.ErrInvalidArgument)
	}

	switch strategy {
	case models.StrategyClientWins:
		settle(c, strategy, c.ClientData, resolver, notes, now)
		return ApplyClient, nil

	case models.StrategyServerWins:
		settle(c, strategy, c.ServerData, resolver, notes, now)
		return KeepServer, nil

	case models.StrategyMerge:
		data := make(map[string]any, len(c.ServerData)+len(c.ClientData)+len(merged))
		maps.Copy(data, c.ServerData)
		maps.Copy(data, c.ClientData)
		maps.Copy(data, merged)
		settle(c, strategy, data, resolver, notes, now)
		return ApplyMerged, nil

	case models.StrategyLatestTimestamp:
		if c.ClientTimestamp == nil && c.ServerTimestamp == nil {
			return KeepServer, fmt.Errorf("%w: no timestamps to compare", common.ErrConflictUnresolved)
		}
		if c.ServerTimestamp == nil || (c.ClientTimestamp != nil && c.ClientTimestamp.After(*c.ServerTimestamp)) {
			settle(c, strategy, c.ClientData, resolver, notes, now)
			return ApplyClient, nil
		}
		settle(c, strategy, c.ServerData, resolver, notes, now)
		return KeepServer, nil
	}

	return KeepServer, fmt.Errorf("%w: strategy %q cannot settle a conflict", common.ErrInvalidArgument, strategy)
}
