// Package metadata stores the client's small key/value state, such as the
// registered device id and its access token.
package metadata

import (
	"context"
)

const (
	KeyDeviceID    = "device_id"
	KeyExternalID  = "external_id"
	KeyAccessToken = "access_token"
	KeyLastSyncAt  = "last_sync_at"
)

type Repository interface {
	// Get returns "" when key is absent.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string]string, error)
}
