// Package api is the wire contract of the offsync.v1.SyncService gRPC
// service. Messages are plain Go structs whose JSON form travels as a
// protobuf-encoded google.protobuf.Value, registered with grpc under the
// "protostruct" content subtype.
package api

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// CodecName is the grpc content subtype of the message codec.
const CodecName = "protostruct"

// structCodec maps a message onto structpb.Value through its JSON tags.
// Numbers become doubles on the wire, so integers must stay below 2^53.
type structCodec struct{}

func (structCodec) Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	var msg structpb.Value
	if err := protojson.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return proto.Marshal(&msg)
}

func (structCodec) Unmarshal(data []byte, v any) error {
	var msg structpb.Value
	if err := proto.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	if msg.GetKind() == nil {
		// an empty frame is the zero message
		return nil
	}
	raw, err := protojson.Marshal(&msg)
	if err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return json.Unmarshal(raw, v)
}

func (structCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(structCodec{})
}
