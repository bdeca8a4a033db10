package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	payload := bytes.Repeat([]byte("wiki archive blob "), 64)

	for _, name := range []string{"", "none", "gzip", "lz4", "brotli"} {
		codec, err := ByName(name)
		require.NoError(t, err, name)

		encoded, err := codec.Encode(payload)
		require.NoError(t, err, name)
		decoded, err := codec.Decode(encoded)
		require.NoError(t, err, name)
		assert.Equal(t, payload, decoded, name)
	}

	_, err := ByName("zstd")
	assert.Error(t, err)
}

func TestGZipShrinksRepetitiveData(t *testing.T) {
	payload := bytes.Repeat([]byte("the same line again\n"), 128)
	encoded, err := NewGZip().Encode(payload)
	require.NoError(t, err)
	assert.Less(t, len(encoded), len(payload))
}
