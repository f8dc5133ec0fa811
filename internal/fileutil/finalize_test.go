package fileutil_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idelchi/mbcbc/internal/fileutil"
)

func TestTempContext_Commit(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tool")
	out := filepath.Join(dir, "tool.enc")

	require.NoError(t, os.WriteFile(src, []byte("#!/bin/sh\n"), 0o755))

	tc, err := fileutil.NewTempContext(src, out)
	require.NoError(t, err)
	assert.True(t, tc.IsExec)

	_, err = tc.TmpFile.WriteString("payload")
	require.NoError(t, err)
	require.NoError(t, tc.Commit(tc.IsExec))

	var noErr error
	tc.CleanupOnError(&noErr)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o711), info.Mode().Perm())

	_, err = os.Stat(tc.TmpName)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	modTime := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)

	size, err := fileutil.FinalizeOutput(out, true, modTime)
	require.NoError(t, err)
	assert.Equal(t, int64(len("payload")), size)

	info, err = os.Stat(out)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(modTime))
}

func TestTempContext_CleanupOnError(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plain")

	require.NoError(t, os.WriteFile(src, []byte("x"), 0o600))

	tc, err := fileutil.NewTempContext(src, filepath.Join(dir, "plain.enc"))
	require.NoError(t, err)

	failed := errors.New("write failed")
	tc.CleanupOnError(&failed)

	_, err = os.Stat(tc.TmpName)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestNewTempContext_RejectsDirectories(t *testing.T) {
	dir := t.TempDir()

	_, err := fileutil.NewTempContext(dir, filepath.Join(dir, "out"))
	assert.Error(t, err)
}
