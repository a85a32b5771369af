package api

import (
	"fmt"

	"google.golang.org/grpc"
)

// CodecName matches the content subtype the base node expects.
const CodecName = "proto"

// Codec is a grpc encoding.Codec for the hand-encoded messages in this
// package. It is forced per call rather than registered globally so it never
// shadows the generated protobuf codec.
type Codec struct{}

func (Codec) Name() string { return CodecName }

func (Codec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(Message)
	if !ok {
		return nil, fmt.Errorf("codec: cannot marshal %T", v)
	}
	return m.Marshal()
}

func (Codec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(Message)
	if !ok {
		return fmt.Errorf("codec: cannot unmarshal into %T", v)
	}
	return m.Unmarshal(data)
}

// CallOption forces Codec on a client call.
func CallOption() grpc.CallOption {
	return grpc.ForceCodec(Codec{})
}

// ServerOption forces Codec on every service of a server.
func ServerOption() grpc.ServerOption {
	return grpc.ForceServerCodec(Codec{})
}
