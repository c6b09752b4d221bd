package testserdes

import (
	"encoding/json"
	"testing"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/stretchr/testify/require"
)

// MarshalUnmarshalJSON checks if expected stays the same after
// marshal/unmarshal via JSON.
func MarshalUnmarshalJSON(t *testing.T, expected, actual any) {
	data, err := json.Marshal(expected)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, actual))
	require.Equal(t, expected, actual)
}

// EncodeDecodeSCALE checks if expected (a pointer) stays the same after
// SCALE encoding/decoding and returns the encoded form.
func EncodeDecodeSCALE(t *testing.T, expected, actual any) []byte {
	data, err := codec.Encode(expected)
	require.NoError(t, err)
	require.NoError(t, codec.Decode(data, actual))
	require.Equal(t, expected, actual)
	return data
}
