package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Payload is the typed body of a queue item. The concrete type always agrees
// with the item's Operation.
type Payload interface {
	Op() Operation
}

type CreatePayload struct {
	Fields map[string]any
}

type UpdatePayload struct {
	Fields map[string]any
}

type DeletePayload struct {
	Reason string
}

type RestorePayload struct{}

// BulkRecord is one record of a BULK_SYNC batch.
type BulkRecord struct {
	RecordID string         `json:"record_id"`
	Fields   map[string]any `json:"fields"`
}

type BulkSyncPayload struct {
	Records []BulkRecord
}

func (CreatePayload) Op() Operation   { return OpCreate }
func (UpdatePayload) Op() Operation   { return OpUpdate }
func (DeletePayload) Op() Operation   { return OpDelete }
func (RestorePayload) Op() Operation  { return OpRestore }
func (BulkSyncPayload) Op() Operation { return OpBulkSync }

var ErrInvalidPayload = errors.New("invalid payload")

// NewPayload builds and validates the payload for op.
func NewPayload(op Operation, fields map[string]any, records []BulkRecord, reason string) (Payload, error) {
	switch op {
	case OpCreate:
		if len(fields) == 0 {
			return nil, fmt.Errorf("%w: CREATE needs fields", ErrInvalidPayload)
		}
		return CreatePayload{Fields: fields}, nil
	case OpUpdate:
		if len(fields) == 0 {
			return nil, fmt.Errorf("%w: UPDATE needs fields", ErrInvalidPayload)
		}
		return UpdatePayload{Fields: fields}, nil
	case OpDelete:
		return DeletePayload{Reason: reason}, nil
	case OpRestore:
		return RestorePayload{}, nil
	case OpBulkSync:
		if len(records) == 0 {
			return nil, fmt.Errorf("%w: BULK_SYNC needs records", ErrInvalidPayload)
		}
		for i, r := range records {
			if r.RecordID == "" {
				return nil, fmt.Errorf("%w: bulk record %d has no id", ErrInvalidPayload, i)
			}
		}
		return BulkSyncPayload{Records: records}, nil
	}
	return nil, fmt.Errorf("%w: unknown operation %q", ErrInvalidPayload, op)
}

// ClientData is the record state the client wants on the server after the
// operation. BULK_SYNC has no single record and returns nil.
func ClientData(p Payload) map[string]any {
	switch v := p.(type) {
	case CreatePayload:
		return v.Fields
	case UpdatePayload:
		return v.Fields
	case DeletePayload:
		return map[string]any{"is_active": false}
	case RestorePayload:
		return map[string]any{"is_active": true}
	}
	return nil
}

type payloadEnvelope struct {
	Op      Operation      `json:"op"`
	Fields  map[string]any `json:"fields,omitempty"`
	Reason  string         `json:"reason,omitempty"`
	Records []BulkRecord   `json:"records,omitempty"`
}

// EncodePayload renders p as {"op": ..., ...} for the jsonb column.
func EncodePayload(p Payload) ([]byte, error) {
	env := payloadEnvelope{}
	switch v := p.(type) {
	case CreatePayload:
		env.Op, env.Fields = OpCreate, v.Fields
	case UpdatePayload:
		env.Op, env.Fields = OpUpdate, v.Fields
	case DeletePayload:
		env.Op, env.Reason = OpDelete, v.Reason
	case RestorePayload:
		env.Op = OpRestore
	case BulkSyncPayload:
		env.Op, env.Records = OpBulkSync, v.Records
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidPayload, p)
	}
	return json.Marshal(env)
}

// DecodePayload is the inverse of EncodePayload.
func DecodePayload(b []byte) (Payload, error) {
	var env payloadEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	switch env.Op {
	case OpCreate:
		return CreatePayload{Fields: env.Fields}, nil
	case OpUpdate:
		return UpdatePayload{Fields: env.Fields}, nil
	case OpDelete:
		return DeletePayload{Reason: env.Reason}, nil
	case OpRestore:
		return RestorePayload{}, nil
	case OpBulkSync:
		return BulkSyncPayload{Records: env.Records}, nil
	}
	return nil, fmt.Errorf("%w: unknown operation %q", ErrInvalidPayload, env.Op)
}
