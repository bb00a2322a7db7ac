package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/dbx"
	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/dmitrijs2005/offsync/internal/server/auth"
	"github.com/dmitrijs2005/offsync/internal/server/config"
	"github.com/dmitrijs2005/offsync/internal/server/models"
	"github.com/dmitrijs2005/offsync/internal/server/repositories/repomanager"
)

// defaultMaxOfflineHours is the offline window granted to new devices.
const defaultMaxOfflineHours = 72

// DeviceService is the device registry.
type DeviceService struct {
	tx                          dbx.Transactor
	repomanager                 repomanager.RepositoryManager
	defaults                    models.SyncConfig
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	logger                      logging.Logger
	now                         func() time.Time
}

func NewDeviceService(tx dbx.Transactor, m repomanager.RepositoryManager, cfg *config.Config, l logging.Logger) *DeviceService {
	return &DeviceService{
		tx:          tx,
		repomanager: m,
		defaults: models.SyncConfig{
			AutoSync:          true,
			SyncFrequency:     cfg.DefaultSyncFrequency,
			MaxOfflineHours:   defaultMaxOfflineHours,
			StorageLimitBytes: cfg.DefaultStorageLimitBytes,
		},
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		logger:                      l.With("module", "devices"),
		now:                         utcNow,
	}
}

// Register creates or refreshes the device known by externalID and records
// a device.registered audit entry. Re-registering is idempotent: an online
// or offline device comes back online, while maintenance and disabled are
// kept until SetStatus changes them.
func (s *DeviceService) Register(ctx context.Context, externalID string, attrs models.DeviceAttrs) (*models.Device, error) {
	if externalID == "" {
		return nil, fmt.Errorf("%w: external id is required", common.ErrInvalidArgument)
	}
	if attrs.Config != nil && (attrs.Config.SyncFrequency < 0 || attrs.Config.StorageLimitBytes < 0) {
		return nil, fmt.Errorf("%w: negative sync config value", common.ErrInvalidArgument)
	}

	now := s.now()
	var device *models.Device

	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		device, err = s.repomanager.Devices(tx).Upsert(ctx, externalID, attrs, s.defaults, now)
		if err != nil {
			return err
		}

		return s.repomanager.Audit(tx).Append(ctx, &models.AuditEntry{
			DeviceID: device.ID,
			Action:   models.AuditDeviceRegistered,
			Details: map[string]any{
				"external_id": externalID,
				"platform":    attrs.Platform,
				"app_version": attrs.AppVersion,
			},
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("error registering device: %w", err)
	}

	s.logger.Info(ctx, "device registered", "device_id", device.ID, "external_id", externalID, "status", device.Status)
	return device, nil
}

// IssueToken mints an access token bound to the device.
func (s *DeviceService) IssueToken(deviceID string) (string, error) {
	token, err := auth.GenerateToken(deviceID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return token, nil
}

func (s *DeviceService) Get(ctx context.Context, id string) (*models.Device, error) {
	return s.repomanager.Devices(s.tx.Conn()).GetByID(ctx, id)
}

// Touch is the device heartbeat.
func (s *DeviceService) Touch(ctx context.Context, id string) (*models.Device, error) {
	return s.repomanager.Devices(s.tx.Conn()).Touch(ctx, id, s.now())
}

// SetStatus moves a device to online, offline, maintenance or disabled.
// The syncing status belongs to the session manager and is refused here, as
// is any change while a session is open.
func (s *DeviceService) SetStatus(ctx context.Context, id string, status models.DeviceStatus) (*models.Device, error) {
	if !status.Valid() || status == models.DeviceSyncing {
		return nil, fmt.Errorf("%w: status %q", common.ErrInvalidArgument, status)
	}

	now := s.now()
	var device *models.Device

	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Devices(tx)

		d, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if d.Status == models.DeviceSyncing {
			return common.ErrSessionInProgress
		}
		if d.Status == status {
			device = d
			return nil
		}

		if err := repo.SetStatus(ctx, id, status, now); err != nil {
			return err
		}

		if err := s.repomanager.Audit(tx).Append(ctx, &models.AuditEntry{
			DeviceID:  id,
			Action:    models.AuditDeviceStatus,
			Details:   map[string]any{"from": string(d.Status), "to": string(status)},
			CreatedAt: now,
		}); err != nil {
			return err
		}

		d.Status = status
		d.UpdatedAt = now
		device = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "device status set", "device_id", id, "status", status)
	return device, nil
}
