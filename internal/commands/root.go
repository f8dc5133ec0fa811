package commands

import (
	"fmt"
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/idelchi/gogen/pkg/cobraext"

	"github.com/idelchi/mbcbc/internal/config"
	"github.com/idelchi/mbcbc/internal/scheduler"
	"github.com/idelchi/mbcbc/pkg/cbcmb"
)

// NewRootCommand creates the root command with common configuration.
// It sets up environment variable binding and flag handling.
func NewRootCommand(cfg *config.Config, version string) *cobra.Command {
	root := cobraext.NewDefaultRootCommand(version)

	root.Use = "mbcbc [flags] command [flags]"
	root.Short = "Batched AES-CBC file encryption"
	root.Long = `A file encryption utility that batches AES-CBC work across files.
Requests from all files are scheduled onto per-CPU multi-buffer managers that
encrypt up to eight buffers in lock-step. Every file is authenticated with an
HMAC-SHA256 tag. Flags can also be set through MBCBC_* environment variables.`

	flags := root.PersistentFlags()

	flags.BoolP("show", "s", false, "Show the configuration and exit")
	flags.IntP("parallel", "j", runtime.NumCPU(), "Number of files processed concurrently")
	flags.BoolP("quiet", "q", false, "Suppress non-error output")
	flags.BoolP("delete", "d", false, "Delete the original file after successful encryption/decryption")
	flags.Bool("dry", false, "List the files that would be processed and exit")
	flags.Bool("stats", false, "Print statistics when done")
	flags.Bool("preserve-timestamps", false, "Copy the modification time of the input to the output")
	flags.String("log-level", "warn", "Log level (trace, debug, info, warn, error, disabled)")

	flags.StringP("key", "k", "", "Encryption key (16, 24 or 32 bytes, hex-encoded)")
	flags.StringP("key-file", "f", "", "Path to the key file with the hex-encoded encryption key")

	flags.Int("cpus", 0, "Number of scheduler shards, 0 for GOMAXPROCS")
	flags.Duration("flush-interval", scheduler.DefaultFlushInterval, "Time a partial batch may wait before it is flushed")
	flags.Int("max-jobs", cbcmb.DefaultMaxJobs, "Job pool capacity per key size and shard")
	flags.Int("chunk", 0, "Split engine requests into parts of this many bytes, 0 to disable")

	flags.String("encrypt-ext", ".enc", "Suffix to append to encrypted files")
	flags.String("decrypt-ext", "", "Suffix to append to decrypted files, after stripping the encrypted suffix")

	flags.StringSliceP("include", "i", nil, "Patterns (find -path) selecting files in directory arguments")
	flags.StringSliceP("exclude", "e", nil, "Patterns (find -path) dropping files in directory arguments")
	flags.String("include-from", "", "JSONC file with an array of include patterns")
	flags.String("exclude-from", "", "JSONC file with an array of exclude patterns")

	root.AddCommand(
		NewEncryptCommand(cfg),
		NewDecryptCommand(cfg),
		NewGenerateCommand(),
	)

	return root
}

// preRun returns a PreRunE handler that resolves positional args into cfg.Files
// and validates the configuration. Without arguments the working directory is used.
func preRun(cfg *config.Config) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, args []string) error {
		if len(args) == 0 {
			cfg.Files = []string{"."}
		} else {
			cfg.Files = args
		}

		return cobraext.Validate(cfg, cfg)
	}
}

// run returns the RunE handler shared by encrypt and decrypt.
func run(cfg *config.Config, action func(*cobra.Command, zerolog.Logger) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		log, err := newLogger(cfg.LogLevel)
		if err != nil {
			return err
		}

		return action(cmd, log)
	}
}

func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parsing log level: %w", err)
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().
		Timestamp().
		Logger(), nil
}
