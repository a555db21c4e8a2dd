package bytestream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStream_WriteSeekOverwrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStream([]byte("hello world"))

	require.NoError(t, s.Seek(0, SeekEnd))
	n, err := s.Write(ctx, []byte("!"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Seek(0, SeekBegin))
	_, err = s.Write(ctx, []byte("J"))
	require.NoError(t, err)

	pos, err := s.Tell()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pos)
	assert.Equal(t, "Jello world!", string(s.Bytes()))
	assert.Equal(t, 2, s.Writes())
}

func TestMemoryStream_SparseWriteZeroFills(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStream(nil)

	require.NoError(t, s.Seek(4, SeekBegin))
	_, err := s.Write(ctx, []byte("ab"))
	require.NoError(t, err)

	assert.Equal(t, []byte{0, 0, 0, 0, 'a', 'b'}, s.Bytes())
	assert.Equal(t, 6, s.Len())
}

func TestMemoryStream_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewMemoryStream(nil)

	_, err := s.Write(ctx, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Sync(ctx), context.Canceled)
	assert.Equal(t, 0, s.Syncs())
}
