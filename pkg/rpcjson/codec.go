// Package rpcjson provides a Connect codec for plain Go structs.
//
// Connect's built-in "json" codec only accepts protobuf messages. Board RPC
// messages are ordinary structs with json tags, so handlers and clients
// register this codec under the same name to replace it.
package rpcjson

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

const Name = "json"

type Codec struct{}

var _ connect.Codec = Codec{}

func (Codec) Name() string { return Name }

func (Codec) Marshal(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", msg, err)
	}
	return data, nil
}

func (Codec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("failed to unmarshal %T: %w", msg, err)
	}
	return nil
}

// Option installs the codec on a Connect client or handler.
func Option() connect.Option {
	return connect.WithCodec(Codec{})
}
