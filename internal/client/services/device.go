// Package services contains the syncctl application services: device
// registration, the local outbox and pushing it to the sync server.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/offsync/internal/api"
	"github.com/dmitrijs2005/offsync/internal/client/client"
	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/offsync/internal/client/repositories/outbox"
	"github.com/dmitrijs2005/offsync/internal/logging"
)

// PersistToken returns a listener that stores every token the client obtains,
// including the ones from silent re-registration.
func PersistToken(meta metadata.Repository, logger logging.Logger) client.TokenListener {
	return func(deviceID, accessToken string) {
		ctx := context.Background()
		if err := meta.Set(ctx, metadata.KeyDeviceID, deviceID); err != nil {
			logger.Error(ctx, "failed to store device id", "error", err)
			return
		}
		if err := meta.Set(ctx, metadata.KeyAccessToken, accessToken); err != nil {
			logger.Error(ctx, "failed to store access token", "error", err)
		}
	}
}

type DeviceService struct {
	client client.Client
	meta   metadata.Repository
	outbox outbox.Repository
	logger logging.Logger
}

func NewDeviceService(c client.Client, meta metadata.Repository, ob outbox.Repository, logger logging.Logger) *DeviceService {
	return &DeviceService{client: c, meta: meta, outbox: ob, logger: logger.With("module", "device")}
}

// Register registers the device with the server and remembers its identity.
func (s *DeviceService) Register(ctx context.Context, req *api.RegisterDeviceRequest) (*api.Device, error) {
	if req.ExternalID == "" {
		return nil, fmt.Errorf("external id is required")
	}

	resp, err := s.client.Register(ctx, req)
	if err != nil {
		return nil, err
	}

	values := map[string]string{
		metadata.KeyDeviceID:    resp.Device.ID,
		metadata.KeyExternalID:  resp.Device.ExternalID,
		metadata.KeyAccessToken: resp.AccessToken,
	}
	for k, v := range values {
		if err := s.meta.Set(ctx, k, v); err != nil {
			return nil, fmt.Errorf("error saving %s: %w", k, err)
		}
	}

	s.logger.Info(ctx, "device registered", "device_id", resp.Device.ID, "external_id", resp.Device.ExternalID)
	return &resp.Device, nil
}

// Restore loads the stored identity into the client. It returns
// client.ErrNotRegistered when the device never registered.
func (s *DeviceService) Restore(ctx context.Context) error {
	deviceID, err := s.meta.Get(ctx, metadata.KeyDeviceID)
	if err != nil {
		return err
	}
	if deviceID == "" {
		return client.ErrNotRegistered
	}

	externalID, err := s.meta.Get(ctx, metadata.KeyExternalID)
	if err != nil {
		return err
	}
	token, err := s.meta.Get(ctx, metadata.KeyAccessToken)
	if err != nil {
		return err
	}

	s.client.SetSession(deviceID, externalID, token)
	return nil
}

// Status summarizes local state. Online is false when the server could not
// be reached.
type Status struct {
	DeviceID   string                      `json:"device_id"`
	ExternalID string                      `json:"external_id"`
	Online     bool                        `json:"online"`
	LastSyncAt *time.Time                  `json:"last_sync_at,omitempty"`
	Outbox     map[models.OutboxStatus]int `json:"outbox"`
}

func (s *DeviceService) Status(ctx context.Context) (*Status, error) {
	all, err := s.meta.List(ctx)
	if err != nil {
		return nil, err
	}

	st := &Status{
		DeviceID:   all[metadata.KeyDeviceID],
		ExternalID: all[metadata.KeyExternalID],
	}

	if raw := all[metadata.KeyLastSyncAt]; raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("bad %s value %q: %w", metadata.KeyLastSyncAt, raw, err)
		}
		st.LastSyncAt = &t
	}

	st.Outbox, err = s.outbox.Counts(ctx)
	if err != nil {
		return nil, err
	}

	if st.DeviceID != "" {
		s.client.SetSession(st.DeviceID, st.ExternalID, all[metadata.KeyAccessToken])
	}
	st.Online = s.client.Ping(ctx) == nil

	return st, nil
}
