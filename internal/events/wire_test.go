package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWireFormatFraming(t *testing.T) {
	frame := EncodeWireFormat(258, []byte(`{"a":1}`))
	require.Equal(t, []byte{0, 0, 0, 1, 2}, frame[:5])

	id, payload, err := DecodeWireFormat(frame)
	require.NoError(t, err)
	require.Equal(t, 258, id)
	require.JSONEq(t, `{"a":1}`, string(payload))
}

func TestDecodeWireFormatRejectsShortOrUnframedValues(t *testing.T) {
	_, _, err := DecodeWireFormat([]byte{0, 1})
	require.Error(t, err)

	_, _, err = DecodeWireFormat([]byte(`{"a":1}`))
	require.Error(t, err)
}
