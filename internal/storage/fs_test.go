package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSSink_WriteAndExists(t *testing.T) {
	sink := NewFSSink(t.TempDir())
	ctx := context.Background()
	dest := "planetscope analytic/four_bands/kericho/2024_03_03/file.tiff"

	exists, err := sink.Exists(ctx, dest)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, sink.Write(ctx, dest, strings.NewReader("tiff-bytes"), 10))

	exists, err = sink.Exists(ctx, dest)
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := os.ReadFile(filepath.Join(sink.Root, filepath.FromSlash(dest)))
	require.NoError(t, err)
	assert.Equal(t, "tiff-bytes", string(data))
}

func TestFSSink_Overwrite(t *testing.T) {
	sink := NewFSSink(t.TempDir())
	ctx := context.Background()

	require.NoError(t, sink.Write(ctx, "a/file.txt", strings.NewReader("old"), 3))
	require.NoError(t, sink.Write(ctx, "a/file.txt", strings.NewReader("new"), 3))

	data, err := os.ReadFile(filepath.Join(sink.Root, "a", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestFSSink_CancelledContext(t *testing.T) {
	sink := NewFSSink(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sink.Write(ctx, "a/file.txt", strings.NewReader("data"), 4)
	require.Error(t, err)

	// No partial file may remain.
	_, statErr := os.Stat(filepath.Join(sink.Root, "a", "file.txt"))
	assert.True(t, os.IsNotExist(statErr))
}
