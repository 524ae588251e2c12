package events

import (
	"encoding/binary"
	"fmt"
)

// EncodeWireFormat applies Confluent framing: a zero magic byte, the 4-byte big-endian
// schema ID, then the JSON payload.
func EncodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, 5+len(payload))
	frame[0] = 0
	binary.BigEndian.PutUint32(frame[1:5], uint32(schemaID))
	copy(frame[5:], payload)
	return frame
}

// DecodeWireFormat splits a framed value into schema ID and payload.
func DecodeWireFormat(value []byte) (int, []byte, error) {
	if len(value) < 5 {
		return 0, nil, fmt.Errorf("invalid payload length: %d", len(value))
	}
	if value[0] != 0 {
		return 0, nil, fmt.Errorf("unknown magic byte: %d", value[0])
	}
	schemaID := int(binary.BigEndian.Uint32(value[1:5]))
	return schemaID, append([]byte(nil), value[5:]...), nil
}
