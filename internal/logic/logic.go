// Package logic implements the core business logic for the encryption/decryption.
package logic

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/idelchi/mbcbc/internal/config"
	"github.com/idelchi/mbcbc/internal/encryption"
	"github.com/idelchi/mbcbc/internal/fileutil"
	"github.com/idelchi/mbcbc/internal/filter"
	"github.com/idelchi/mbcbc/internal/scheduler"
)

// stats accumulates what a run did, for the --stats summary.
type stats struct {
	scanned, excluded  int
	processed, errored int
	read, written      int64
	requests           int
}

// Run resolves the configured paths into files and encrypts or decrypts each
// of them through a shared engine.
//
//nolint:cyclop,gocognit // parallel processing pipeline with printer goroutine
func Run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	start := time.Now()

	var sum stats

	scanned, err := resolveFiles(cfg)
	if err != nil {
		return fmt.Errorf("resolving files: %w", err)
	}

	sum.scanned = scanned
	sum.excluded = scanned - len(cfg.Files)

	if cfg.Dry {
		dryRun(cfg, &sum)

		if cfg.Stats {
			printStats(os.Stderr, sum, time.Since(start))
		}

		return nil
	}

	master, err := cfg.LoadKey()
	if err != nil {
		return fmt.Errorf("loading key: %w", err)
	}

	engine, err := scheduler.New(engineOptions(cfg, log)...)
	if err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}

	defer func() {
		if err := engine.Close(); err != nil {
			log.Error().Err(err).Msg("stopping engine")
		}
	}()

	proc, err := encryption.NewProcessor(cfg, engine, master, log)
	if err != nil {
		return fmt.Errorf("creating processor: %w", err)
	}

	results := make(chan encryption.Result, len(cfg.Files))

	group := errgroup.Group{}
	group.SetLimit(cfg.Parallel)

	printed := make(chan struct{})

	go func() {
		defer close(printed)

		for res := range results {
			if res.Error != nil {
				sum.errored++

				fmt.Fprintf(os.Stderr, "Error processing %q: %v\n", res.Input, res.Error)

				continue
			}

			sum.processed++
			sum.read += res.InputSize
			sum.written += res.OutputSize
			sum.requests += res.Requests

			if !cfg.Quiet {
				fmt.Printf("Processed %q -> %q\n", res.Input, res.Output) //nolint:forbidigo
			}

			if cfg.Delete {
				if err := os.Remove(res.Input); err != nil {
					fmt.Fprintf(os.Stderr, "Error deleting %q: %v\n", res.Input, err)
				} else if !cfg.Quiet {
					fmt.Printf("Deleted %q\n", res.Input) //nolint:forbidigo
				}
			}
		}
	}()

	for _, file := range cfg.Files {
		group.Go(func() error {
			res := proc.ProcessFile(ctx, file)
			results <- res

			return res.Error
		})
	}

	err = group.Wait()

	close(results)

	<-printed

	if cfg.Stats {
		printStats(os.Stderr, sum, time.Since(start))
	}

	if err != nil {
		return fmt.Errorf("processing files: %w", err)
	}

	return nil
}

// resolveFiles expands cfg.Files into the files to process, applying the
// include/exclude patterns to walked directories. It returns the number of
// files scanned before filtering.
func resolveFiles(cfg *config.Config) (int, error) {
	includes := append([]string{}, cfg.Include...)
	excludes := append([]string{}, cfg.Exclude...)

	if cfg.IncludeFrom != "" {
		patterns, err := filter.LoadPatterns(cfg.IncludeFrom)
		if err != nil {
			return 0, fmt.Errorf("loading include patterns: %w", err)
		}

		includes = append(includes, patterns...)
	}

	if cfg.ExcludeFrom != "" {
		patterns, err := filter.LoadPatterns(cfg.ExcludeFrom)
		if err != nil {
			return 0, fmt.Errorf("loading exclude patterns: %w", err)
		}

		excludes = append(excludes, patterns...)
	}

	// Leftovers of interrupted writes are never inputs.
	excludes = append(excludes, fileutil.TempPattern, "*/"+fileutil.TempPattern)

	switch {
	case cfg.Decrypt && len(includes) == 0:
		includes = append(includes, "*"+cfg.EncryptSuffix)
	case !cfg.Decrypt:
		excludes = append(excludes, "*"+cfg.EncryptSuffix)
	}

	flt, err := filter.NewFilter(includes, excludes)
	if err != nil {
		return 0, err
	}

	files, scanned, err := filter.Resolve(cfg.Files, flt)
	if err != nil {
		return scanned, fmt.Errorf("filtering files: %w", err)
	}

	cfg.Files = files

	return scanned, nil
}

// dryRun lists what would be processed without touching any file.
func dryRun(cfg *config.Config, sum *stats) {
	for _, file := range cfg.Files {
		if !cfg.Quiet {
			fmt.Printf("Would process %q -> %q\n", file, encryption.OutputPath(cfg, file)) //nolint:forbidigo
		}

		if info, err := os.Stat(file); err == nil {
			sum.read += info.Size()
		}

		sum.processed++
	}
}

func engineOptions(cfg *config.Config, log zerolog.Logger) []scheduler.Option {
	opts := []scheduler.Option{
		scheduler.WithFlushInterval(cfg.FlushInterval),
		scheduler.WithMaxJobs(cfg.MaxJobs),
		scheduler.WithLogger(log),
	}

	if cfg.CPUs > 0 {
		opts = append(opts, scheduler.WithCPUs(cfg.CPUs))
	}

	return opts
}

func printStats(w io.Writer, sum stats, duration time.Duration) {
	fmt.Fprintf(w, "\nStats\n")
	fmt.Fprintf(w, "  Scanned:    %d\n", sum.scanned)
	fmt.Fprintf(w, "  Excluded:   %d\n", sum.excluded)
	fmt.Fprintf(w, "  Processed:  %d\n", sum.processed)
	fmt.Fprintf(w, "  Errors:     %d\n", sum.errored)
	fmt.Fprintf(w, "  Requests:   %d\n", sum.requests)
	//nolint:gosec // sums of file sizes are non-negative
	fmt.Fprintf(w, "  Read:       %s\n", humanize.IBytes(uint64(max(0, sum.read))))
	//nolint:gosec // sums of file sizes are non-negative
	fmt.Fprintf(w, "  Written:    %s\n", humanize.IBytes(uint64(max(0, sum.written))))
	fmt.Fprintf(w, "  Duration:   %s\n", duration.Round(time.Millisecond))

	if seconds := duration.Seconds(); seconds > 0 {
		//nolint:gosec // non-negative
		fmt.Fprintf(w, "  Throughput: %s/s\n", humanize.IBytes(uint64(float64(max(0, sum.read))/seconds)))
	}
}
