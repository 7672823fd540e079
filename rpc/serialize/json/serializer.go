package json

import (
	"bytes"
	"encoding/json"

	"ejrpc/rpc/serialize"
)

var _ serialize.Serializer = Serializer{}

// Serializer -> JSON serialization protocol
type Serializer struct {
	// DisallowUnknownFields rejects result objects carrying members the
	// target struct does not declare.
	DisallowUnknownFields bool
}

func (s Serializer) Code() byte {
	return 1
}

func (s Serializer) Encode(val any) ([]byte, error) {
	return json.Marshal(val)
}

func (s Serializer) Decode(data []byte, val any) error {
	if !s.DisallowUnknownFields {
		return json.Unmarshal(data, val)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(val)
}
