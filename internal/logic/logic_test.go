package logic_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idelchi/mbcbc/internal/config"
	"github.com/idelchi/mbcbc/internal/logic"
)

func baseConfig(files []string) *config.Config {
	return &config.Config{
		Key:           strings.Repeat("5c", 24),
		Parallel:      4,
		CPUs:          2,
		FlushInterval: time.Millisecond,
		MaxJobs:       32,
		Chunk:         4096,
		EncryptSuffix: ".enc",
		Quiet:         true,
		Stats:         true,
		Files:         files,
	}
}

func TestRun_EncryptThenDecrypt(t *testing.T) {
	dir := t.TempDir()

	var files []string

	contents := map[string][]byte{}

	for i := range 12 {
		path := filepath.Join(dir, "file"+strings.Repeat("x", i))
		data := bytes.Repeat([]byte{byte(i)}, i*1000+3)

		require.NoError(t, os.WriteFile(path, data, 0o600))

		files = append(files, path)
		contents[path] = data
	}

	cfg := baseConfig(files)
	cfg.Delete = true

	require.NoError(t, logic.Run(context.Background(), cfg, zerolog.Nop()))

	var encrypted []string

	for _, path := range files {
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err), "%s should be deleted", path)

		encrypted = append(encrypted, path+".enc")
	}

	cfg = baseConfig(encrypted)
	cfg.Decrypt = true

	require.NoError(t, logic.Run(context.Background(), cfg, zerolog.Nop()))

	for path, want := range contents {
		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestRun_ReportsFailures(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good")

	require.NoError(t, os.WriteFile(good, []byte("ok"), 0o600))
	require.NoError(t, logic.Run(context.Background(), baseConfig([]string{good}), zerolog.Nop()))
	require.NoError(t, os.Remove(good))

	bogus := filepath.Join(dir, "bogus.enc")
	require.NoError(t, os.WriteFile(bogus, bytes.Repeat([]byte{1}, 200), 0o600))

	cfg := baseConfig([]string{bogus, good + ".enc"})
	cfg.Decrypt = true

	err := logic.Run(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)

	got, readErr := os.ReadFile(good)
	require.NoError(t, readErr, "other files are still processed")
	assert.Equal(t, "ok", string(got))
}

func TestRun_MissingPath(t *testing.T) {
	cfg := baseConfig([]string{filepath.Join(t.TempDir(), "missing")})

	err := logic.Run(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "resolving files")
}

func TestRun_Directories(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"a.txt", "sub/b.txt", "sub/skip.log", "old.enc", "sub/.tmp-42"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(name), 0o600))
	}

	cfg := baseConfig([]string{dir})
	cfg.Exclude = []string{"*.log"}

	require.NoError(t, logic.Run(context.Background(), cfg, zerolog.Nop()))
	assert.Equal(t, []string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "sub/b.txt")}, cfg.Files)

	for _, name := range []string{"a.txt.enc", "sub/b.txt.enc"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	for _, name := range []string{"old.enc.enc", "sub/skip.log.enc", "sub/.tmp-42.enc"} {
		assert.NoFileExists(t, filepath.Join(dir, name))
	}

	// Decrypting the directory picks up every encrypted file, old.enc included.
	cfg = baseConfig([]string{dir})
	cfg.Decrypt = true
	cfg.DecryptSuffix = ".out"
	cfg.Dry = true

	require.NoError(t, logic.Run(context.Background(), cfg, zerolog.Nop()))
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.txt.enc"),
		filepath.Join(dir, "old.enc"),
		filepath.Join(dir, "sub/b.txt.enc"),
	}, cfg.Files)
	assert.NoFileExists(t, filepath.Join(dir, "a.txt.out"), "dry run writes nothing")
}

func TestRun_IncludeFrom(t *testing.T) {
	dir := t.TempDir()
	patterns := filepath.Join(t.TempDir(), "include.jsonc")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.md"), []byte("md"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "drop.bin"), []byte("bin"), 0o600))
	require.NoError(t, os.WriteFile(patterns, []byte("[\n  // documents only\n  \"*.md\",\n]"), 0o600))

	cfg := baseConfig([]string{dir})
	cfg.IncludeFrom = patterns

	require.NoError(t, logic.Run(context.Background(), cfg, zerolog.Nop()))
	assert.FileExists(t, filepath.Join(dir, "keep.md.enc"))
	assert.NoFileExists(t, filepath.Join(dir, "drop.bin.enc"))
}

func TestRun_KeyFromFile(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "key")
	plain := filepath.Join(dir, "plain")

	require.NoError(t, os.WriteFile(keyFile, []byte(strings.Repeat("0a", 16)+"\n"), 0o600))
	require.NoError(t, os.WriteFile(plain, []byte("content"), 0o600))

	cfg := baseConfig([]string{plain})
	cfg.Key, cfg.KeyFile = "", keyFile
	cfg.CPUs = 0

	require.NoError(t, logic.Run(context.Background(), cfg, zerolog.Nop()))

	_, err := os.Stat(plain + ".enc")
	assert.NoError(t, err)
}
