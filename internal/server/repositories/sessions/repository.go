// Package sessions persists sync sessions.
package sessions

import (
	"context"

	"github.com/dmitrijs2005/offsync/internal/server/models"
)

// Repository returns common.ErrSessionNotFound for unknown sessions.
type Repository interface {
	// Open inserts s in syncing status. A device with an open session
	// yields common.ErrSessionInProgress.
	Open(ctx context.Context, s *models.SyncSession) error
	GetByID(ctx context.Context, id string) (*models.SyncSession, error)
	GetOpen(ctx context.Context, deviceID string) (*models.SyncSession, error)
	// ListOpen returns every session still syncing, oldest first.
	ListOpen(ctx context.Context) ([]models.SyncSession, error)
	// Close writes the final counters and status of an open session.
	Close(ctx context.Context, s *models.SyncSession) error
	ListByDevice(ctx context.Context, deviceID string, limit int) ([]models.SyncSession, error)
}
