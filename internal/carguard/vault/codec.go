package vault

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Documents are stored as google.protobuf.Struct in protobuf binary. The
// Go value passes through its JSON shape, so json tags decide field names
// and unknown or missing fields are tolerated on decode.

var marshalOpts = proto.MarshalOptions{Deterministic: true}

// EncodeDocument renders v through its JSON shape into protobuf binary.
func EncodeDocument(v any) ([]byte, error) {
	js, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("vault: encode json: %w", err)
	}

	var doc structpb.Struct
	if err := protojson.Unmarshal(js, &doc); err != nil {
		return nil, fmt.Errorf("vault: encode struct: %w", err)
	}

	b, err := marshalOpts.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("vault: encode proto: %w", err)
	}
	return b, nil
}

// DecodeDocument is the inverse of EncodeDocument. Failures wrap ErrStoreCorrupt.
func DecodeDocument(b []byte, v any) error {
	var doc structpb.Struct
	if err := proto.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("%w: proto: %v", ErrStoreCorrupt, err)
	}

	js, err := protojson.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("%w: json: %v", ErrStoreCorrupt, err)
	}
	if err := json.Unmarshal(js, v); err != nil {
		return fmt.Errorf("%w: shape: %v", ErrStoreCorrupt, err)
	}
	return nil
}
