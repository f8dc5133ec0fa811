// Command mbcbc encrypts and decrypts files with batched AES-CBC.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/idelchi/gogen/pkg/cobraext"

	"github.com/idelchi/mbcbc/internal/commands"
	"github.com/idelchi/mbcbc/internal/config"
)

// version is set at build time.
var version = "unknown" //nolint:gochecknoglobals

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := &config.Config{}

	err := commands.NewRootCommand(cfg, version).ExecuteContext(ctx)
	if err != nil && !errors.Is(err, cobraext.ErrExitGracefully) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)

		return 1
	}

	return 0
}
