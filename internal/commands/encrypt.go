package commands

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/idelchi/mbcbc/internal/config"
	"github.com/idelchi/mbcbc/internal/logic"
)

// NewEncryptCommand creates a new cobra command for the encrypt subcommand.
func NewEncryptCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:     "encrypt [flags] paths...",
		Aliases: []string{"enc"},
		Short:   "Encrypt files",
		Long: `Encrypt files. Directories are walked; files already carrying the
encrypted suffix are skipped there.`,
		Args:    cobra.MinimumNArgs(1),
		PreRunE: preRun(cfg),
		RunE: run(cfg, func(cmd *cobra.Command, log zerolog.Logger) error {
			return logic.Run(cmd.Context(), cfg, log)
		}),
	}
}
