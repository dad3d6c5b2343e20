package cache

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageCache_EncodeDecode(t *testing.T) {
	c, err := NewPageCache(nil, PageCacheConfig{CompressThreshold: 16})
	require.NoError(t, err)

	small := []byte(`{"docs":[]}`)
	enc := c.encode(small)
	assert.Equal(t, markRaw, enc[0])
	dec, err := c.decode(enc)
	require.NoError(t, err)
	assert.Equal(t, small, dec)

	large := bytes.Repeat([]byte(`{"name":"phone"},`), 200)
	enc = c.encode(large)
	assert.Equal(t, markZstd, enc[0])
	assert.Less(t, len(enc), len(large))
	dec, err = c.decode(enc)
	require.NoError(t, err)
	assert.Equal(t, large, dec)
}

func TestPageCache_DecodeRejectsGarbage(t *testing.T) {
	c, err := NewPageCache(nil, PageCacheConfig{})
	require.NoError(t, err)

	_, err = c.decode(nil)
	assert.Error(t, err)
	_, err = c.decode([]byte("xabc"))
	assert.Error(t, err)
	_, err = c.decode([]byte("znot zstd"))
	assert.Error(t, err)
}
