package grpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec replaces the protobuf wire codec with plain JSON marshaling.
// There is no protoc step in this repo, so every message in messages.go is
// a hand-written struct rather than protoc-gen-go output; registering this
// codec (and forcing it server-side via grpc.ForceServerCodec) keeps the
// rest of grpc-go's transport, keepalive, TLS and reflection machinery
// exactly as the framework provides it.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return "json"
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
