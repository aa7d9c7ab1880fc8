package store

import (
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockHeightFromTxID(t *testing.T) {
	id := append([]byte{0x07}, protowire.AppendVarint(nil, 123456)...)
	height, err := blockHeightFromTxID(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(123456), height)
}

func TestBlockHeightFromTxIDTooShort(t *testing.T) {
	_, err := blockHeightFromTxID([]byte{0x01})
	assert.Error(t, err)
}

func TestIDKeyRoundTrip(t *testing.T) {
	id := []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}
	key := idKey(id)
	got, err := idFromKey(key)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}
