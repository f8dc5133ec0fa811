package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idelchi/mbcbc/internal/config"
)

func valid() config.Config {
	return config.Config{
		Key:           strings.Repeat("ab", 32),
		Parallel:      2,
		FlushInterval: 500 * time.Microsecond,
		MaxJobs:       128,
		EncryptSuffix: ".enc",
		LogLevel:      "warn",
		Files:         []string{"a.txt"},
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]struct {
		mutate  func(*config.Config)
		wantErr string
	}{
		"valid":            {mutate: func(*config.Config) {}},
		"chunk aligned":    {mutate: func(c *config.Config) { c.Chunk = 4096 }},
		"chunk unaligned":  {mutate: func(c *config.Config) { c.Chunk = 100 }, wantErr: "--chunk"},
		"both keys":        {mutate: func(c *config.Config) { c.KeyFile = "key.txt" }, wantErr: "exclusive"},
		"no key":           {mutate: func(c *config.Config) { c.Key = "" }, wantErr: "--key"},
		"key not hex":      {mutate: func(c *config.Config) { c.Key = "zz" }, wantErr: "invalid key"},
		"key wrong size":   {mutate: func(c *config.Config) { c.Key = strings.Repeat("ab", 20) }, wantErr: "invalid key"},
		"no files":         {mutate: func(c *config.Config) { c.Files = nil }, wantErr: "Files"},
		"small pool":       {mutate: func(c *config.Config) { c.MaxJobs = 4 }, wantErr: "--max-jobs"},
		"zero interval":    {mutate: func(c *config.Config) { c.FlushInterval = 0 }, wantErr: "--flush-interval"},
		"bad log level":    {mutate: func(c *config.Config) { c.LogLevel = "loud" }, wantErr: "--log-level"},
		"key file only":    {mutate: func(c *config.Config) { c.Key, c.KeyFile = "", "key.txt" }},
		"aes-128 key size": {mutate: func(c *config.Config) { c.Key = strings.Repeat("0f", 16) }},
		"spaced hex key":   {mutate: func(c *config.Config) { c.Key = " " + strings.Repeat("0f", 24) + "\n" }},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)

			err := cfg.Validate(&cfg)
			if tc.wantErr == "" {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("01", 24)+"\n"), 0o600))

	cfg := config.Config{KeyFile: path}

	raw, err := cfg.LoadKey()
	require.NoError(t, err)
	assert.Len(t, raw, 24)

	cfg = config.Config{KeyFile: filepath.Join(t.TempDir(), "missing")}

	_, err = cfg.LoadKey()
	assert.Error(t, err)

	cfg = config.Config{Key: "abcd"}

	_, err = cfg.LoadKey()
	assert.ErrorIs(t, err, config.ErrKey)
}

func TestDisplay(t *testing.T) {
	cfg := valid()
	assert.False(t, cfg.Display())

	cfg.Show = true
	assert.True(t, cfg.Display())
}
