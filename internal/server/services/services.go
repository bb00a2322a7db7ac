// Package services contains the server-side sync engine: device registry,
// sync queue, offline cache, session management and the round orchestration
// built on top of them.
package services

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/offsync/internal/server/models"
)

// Archiver stores the report of a closed session.
type Archiver interface {
	Archive(ctx context.Context, s *models.SyncSession) error
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// deviceLocks hands out at most one holder per device id.
type deviceLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newDeviceLocks() *deviceLocks {
	return &deviceLocks{held: make(map[string]struct{})}
}

// TryLock returns an unlock func and true, or false when the device is held.
func (l *deviceLocks) TryLock(deviceID string) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[deviceID]; busy {
		return nil, false
	}
	l.held[deviceID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, deviceID)
			l.mu.Unlock()
		})
	}, true
}
