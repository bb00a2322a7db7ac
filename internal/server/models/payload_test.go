package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPayload_Validation(t *testing.T) {
	_, err := NewPayload(OpCreate, nil, nil, "")
	assert.True(t, errors.Is(err, ErrInvalidPayload))

	_, err = NewPayload(OpUpdate, map[string]any{}, nil, "")
	assert.True(t, errors.Is(err, ErrInvalidPayload))

	_, err = NewPayload(OpBulkSync, nil, []BulkRecord{{Fields: map[string]any{"a": 1}}}, "")
	assert.True(t, errors.Is(err, ErrInvalidPayload))

	_, err = NewPayload("MERGE", nil, nil, "")
	assert.True(t, errors.Is(err, ErrInvalidPayload))

	p, err := NewPayload(OpDelete, nil, nil, "duplicate")
	require.NoError(t, err)
	assert.Equal(t, DeletePayload{Reason: "duplicate"}, p)
}

func TestPayload_EncodeTagsOperation(t *testing.T) {
	b, err := EncodePayload(UpdatePayload{Fields: map[string]any{"qty": 3}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":"UPDATE","fields":{"qty":3}}`, string(b))

	b, err = EncodePayload(RestorePayload{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":"RESTORE"}`, string(b))
}

func TestPayload_DecodeBulk(t *testing.T) {
	p, err := DecodePayload([]byte(`{"op":"BULK_SYNC","records":[{"record_id":"r1","fields":{"name":"x"}}]}`))
	require.NoError(t, err)
	bulk, ok := p.(BulkSyncPayload)
	require.True(t, ok)
	require.Len(t, bulk.Records, 1)
	assert.Equal(t, "r1", bulk.Records[0].RecordID)
	assert.Equal(t, OpBulkSync, p.Op())
}

func TestPayload_DecodeRejectsUnknownOp(t *testing.T) {
	_, err := DecodePayload([]byte(`{"op":"TRUNCATE"}`))
	assert.True(t, errors.Is(err, ErrInvalidPayload))

	_, err = DecodePayload([]byte(`not json`))
	assert.True(t, errors.Is(err, ErrInvalidPayload))
}

func TestClientData(t *testing.T) {
	assert.Equal(t, map[string]any{"a": 1}, ClientData(CreatePayload{Fields: map[string]any{"a": 1}}))
	assert.Equal(t, map[string]any{"is_active": false}, ClientData(DeletePayload{}))
	assert.Equal(t, map[string]any{"is_active": true}, ClientData(RestorePayload{}))
	assert.Nil(t, ClientData(BulkSyncPayload{}))
}
