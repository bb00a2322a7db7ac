// Package models defines the records kept in the local outbox database.
package models

import (
	"time"

	"github.com/dmitrijs2005/offsync/internal/api"
)

type OutboxStatus string

const (
	OutboxPending  OutboxStatus = "pending"
	OutboxSent     OutboxStatus = "sent"
	OutboxRejected OutboxStatus = "rejected"
)

func (s OutboxStatus) Valid() bool {
	return s == OutboxPending || s == OutboxSent || s == OutboxRejected
}

// OutboxEntry is one operation recorded while the device may be offline.
// Entries are pushed to the server in Seq order.
type OutboxEntry struct {
	ID              string           `json:"id"`
	Seq             int64            `json:"seq"`
	Operation       string           `json:"operation"`
	TableName       string           `json:"table_name"`
	RecordID        string           `json:"record_id,omitempty"`
	Fields          map[string]any   `json:"fields,omitempty"`
	Records         []api.BulkRecord `json:"records,omitempty"`
	Reason          string           `json:"reason,omitempty"`
	Priority        string           `json:"priority,omitempty"`
	ClientWatermark *time.Time       `json:"client_watermark,omitempty"`
	Status          OutboxStatus     `json:"status"`
	ServerItemID    string           `json:"server_item_id,omitempty"`
	LastError       string           `json:"last_error,omitempty"`
	Attempts        int              `json:"attempts"`
	CreatedAt       time.Time        `json:"created_at"`
	SentAt          *time.Time       `json:"sent_at,omitempty"`
}

// Request converts the entry into the EnqueueOperation call for deviceID.
func (e *OutboxEntry) Request(deviceID string) *api.EnqueueOperationRequest {
	return &api.EnqueueOperationRequest{
		DeviceID:        deviceID,
		Operation:       e.Operation,
		TableName:       e.TableName,
		RecordID:        e.RecordID,
		Fields:          e.Fields,
		Records:         e.Records,
		Reason:          e.Reason,
		Priority:        e.Priority,
		ClientWatermark: e.ClientWatermark,
	}
}
