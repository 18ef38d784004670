package device

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeFrameSizeAndBlocks(t *testing.T) {
	pageSize := os.Getpagesize()

	frameSize, blockSize, numBlocks, err := computeFrameSizeAndBlocks(2048, 16*1024*1024)
	require.NoError(t, err)
	assert.Zero(t, pageSize%frameSize)
	assert.GreaterOrEqual(t, frameSize, 2048)
	assert.Equal(t, frameSize*128, blockSize)
	assert.Equal(t, 16*1024*1024/blockSize, numBlocks)

	frameSize, _, _, err = computeFrameSizeAndBlocks(pageSize+1, 64*1024*1024)
	require.NoError(t, err)
	assert.Equal(t, 2*pageSize, frameSize)

	_, _, _, err = computeFrameSizeAndBlocks(2048, 1024)
	assert.Error(t, err)

	_, _, _, err = computeFrameSizeAndBlocks(0, 1024*1024)
	assert.Error(t, err)
}
