package localdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDecodePlaylistNodeRowShortInputNoPanic covers spec.md §1's "no panics
// on valid input" by exercising the boundary just below decodePlaylistNodeRow's
// fixed-field read (parentId, sortOrder, id, isFolder = 16 bytes).
func TestDecodePlaylistNodeRowShortInputNoPanic(t *testing.T) {
	for length := 0; length < 16; length++ {
		length := length
		t.Run("", func(t *testing.T) {
			_, err := decodePlaylistNodeRow(make([]byte, length))
			assert.Error(t, err)
		})
	}
}

func TestDecodePlaylistNodeRowExactFixedLength(t *testing.T) {
	f := make([]byte, 16)
	putU32(f, 0, 1)  // parentId
	putU32(f, 4, 2)  // sortOrder
	putU32(f, 8, 3)  // id
	putU32(f, 12, 1) // isFolder

	n, err := decodePlaylistNodeRow(f)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n.ParentID)
	assert.EqualValues(t, 2, n.SortOrder)
	assert.EqualValues(t, 3, n.ID)
	assert.True(t, n.IsFolder)
	assert.Equal(t, "", n.Name)
}
