package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSuccessRate(t *testing.T) {
	assert.Equal(t, 1.0, SuccessRate(0, 0))
	assert.Equal(t, 0.5, SuccessRate(2, 4))
	assert.Equal(t, 0.0, SuccessRate(0, 3))
	assert.Equal(t, 1.0, SuccessRate(5, 4))
}

func TestCacheEntry_Expired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.True(t, (&CacheEntry{ExpiresAt: &past}).Expired(now))
	assert.True(t, (&CacheEntry{ExpiresAt: &now}).Expired(now))
	assert.False(t, (&CacheEntry{ExpiresAt: &future}).Expired(now))
	assert.False(t, (&CacheEntry{IsCritical: true, ExpiresAt: &past}).Expired(now))
	assert.False(t, (&CacheEntry{}).Expired(now))
}

func TestDeviceStatus_Available(t *testing.T) {
	assert.True(t, DeviceOnline.Available())
	assert.True(t, DeviceOffline.Available())
	assert.False(t, DeviceSyncing.Available())
	assert.False(t, DeviceMaintenance.Available())
	assert.False(t, DeviceDisabled.Available())
}
