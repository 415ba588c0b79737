// Package api exposes the chat service over gRPC on the profile's unix
// socket. Request and response messages are plain Go structs carried by a
// JSON codec, and the service descriptors are declared by hand.
package api

import (
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content subtype of the JSON codec.
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// CallOption selects the JSON codec for a call. Service clients add it to
// every call.
func CallOption() grpc.CallOption {
	return grpc.CallContentSubtype(CodecName)
}
