// Package conflicts persists detected conflicts and their resolutions.
package conflicts

import (
	"context"

	"github.com/dmitrijs2005/offsync/internal/server/models"
)

type Repository interface {
	// Create stores c, filling ID when empty. A second conflict for the same
	// queue item yields common.ErrConflictExists.
	Create(ctx context.Context, c *models.Conflict) error
	GetByID(ctx context.Context, id string) (*models.Conflict, error)
	// GetForUpdate reads with a row lock; use inside a transaction.
	GetForUpdate(ctx context.Context, id string) (*models.Conflict, error)
	ListByDevice(ctx context.Context, deviceID string, unresolvedOnly bool, limit int) ([]models.Conflict, error)
	// HasUnresolved reports an open conflict on the device's copy of a record.
	HasUnresolved(ctx context.Context, deviceID, table, recordID string) (bool, error)
	// Resolve persists the resolution fields of c. It returns
	// common.ErrConflictAlreadyResolved if the row was settled meanwhile.
	Resolve(ctx context.Context, c *models.Conflict) error
}
