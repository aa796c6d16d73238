package schema

import (
	"encoding/binary"
	"errors"
)

const (
	magicByte    byte = 0
	headerLength      = 5
)

var ErrNotFramed = errors.New("payload is not in schema registry wire format")

// Frame prefixes payload with the magic byte and the big-endian schema id.
func Frame(id int, payload []byte) []byte {
	out := make([]byte, headerLength, headerLength+len(payload))
	out[0] = magicByte
	binary.BigEndian.PutUint32(out[1:headerLength], uint32(id))
	return append(out, payload...)
}

// Unframe splits a framed message into its schema id and payload.
func Unframe(data []byte) (int, []byte, error) {
	if len(data) < headerLength || data[0] != magicByte {
		return 0, nil, ErrNotFramed
	}
	return int(binary.BigEndian.Uint32(data[1:headerLength])), data[headerLength:], nil
}
