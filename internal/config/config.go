// Package config holds the command-line configuration of mbcbc.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/idelchi/gogen/pkg/key"
	"github.com/idelchi/gogen/pkg/validator"

	"github.com/idelchi/mbcbc/pkg/cbcmb"
)

// ErrKey is returned when no usable key could be loaded.
var ErrKey = errors.New("invalid key")

// Config is filled from flags and MBCBC_* environment variables.
type Config struct {
	// Key material, hex encoded
	Key     string `label:"--key"      mask:"filled"           validate:"required_without=KeyFile,exclusive=KeyFile"`
	KeyFile string `label:"--key-file" mapstructure:"key-file"`

	// Engine tuning
	Parallel      int           `label:"--parallel"       validate:"min=1"`
	CPUs          int           `label:"--cpus"           validate:"min=0"`
	FlushInterval time.Duration `label:"--flush-interval" mapstructure:"flush-interval" validate:"gt=0"`
	MaxJobs       int           `label:"--max-jobs"       mapstructure:"max-jobs"       validate:"min=8"`
	Chunk         int           `label:"--chunk"          validate:"min=0,blockmultiple"`

	EncryptSuffix string `label:"--encrypt-ext" mapstructure:"encrypt-ext" validate:"required"`
	DecryptSuffix string `label:"--decrypt-ext" mapstructure:"decrypt-ext"`

	// File selection for directory arguments
	Include     []string
	Exclude     []string
	IncludeFrom string `mapstructure:"include-from"`
	ExcludeFrom string `mapstructure:"exclude-from"`

	Quiet              bool
	Delete             bool
	Dry                bool
	Stats              bool
	PreserveTimestamps bool   `mapstructure:"preserve-timestamps"`
	LogLevel           string `label:"--log-level" mapstructure:"log-level" validate:"oneof=trace debug info warn error disabled"`
	Show               bool

	// Set by the decrypt command
	Decrypt bool `mapstructure:"-"`

	// Positional arguments
	Files []string `mapstructure:"-" validate:"min=1"`
}

// Display reports whether the configuration should be shown instead of run.
func (c *Config) Display() bool {
	return c.Show
}

// Validate checks config against its struct tags and, if set, the key.
func (c *Config) Validate(config any) error {
	validator := validator.NewValidator()

	if err := registerRules(validator); err != nil {
		return err
	}

	if errs := validator.Validate(config); errs != nil {
		return errors.Join(errs...)
	}

	if c.Key != "" {
		if _, err := parseKey(c.Key); err != nil {
			return err
		}
	}

	return nil
}

// LoadKey returns the raw key from --key or the contents of --key-file.
func (c *Config) LoadKey() ([]byte, error) {
	encoded := c.Key

	if c.KeyFile != "" {
		data, err := os.ReadFile(c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading key file: %w", err)
		}

		encoded = string(data)
	}

	return parseKey(encoded)
}

func parseKey(encoded string) ([]byte, error) {
	raw, err := key.FromHex(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKey, err)
	}

	if _, err := cbcmb.KeySizeOf(len(raw)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKey, err)
	}

	return raw, nil
}
