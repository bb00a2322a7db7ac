// Package audit stores the append-only audit trail of registry and
// resolution events.
package audit

import (
	"context"

	"github.com/dmitrijs2005/offsync/internal/server/models"
)

type Repository interface {
	Append(ctx context.Context, e *models.AuditEntry) error
	ListByDevice(ctx context.Context, deviceID string, limit int) ([]models.AuditEntry, error)
}
