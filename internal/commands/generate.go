package commands

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tink-crypto/tink-go/v2/subtle/random"

	"github.com/idelchi/mbcbc/pkg/cbcmb"
)

// NewGenerateCommand creates a new cobra command that prints a random key.
func NewGenerateCommand() *cobra.Command {
	var bits int

	cmd := &cobra.Command{
		Use:     "generate",
		Aliases: []string{"gen"},
		Short:   "Generate a new encryption key",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			size := cbcmb.KeySize(bits)
			if !size.Valid() {
				return fmt.Errorf("%w: %d bits", cbcmb.ErrInvalidKeyLength, bits)
			}

			//nolint:gosec // at most 32
			key := random.GetRandomBytes(uint32(size.Bytes()))

			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(key))

			return nil
		},
	}

	cmd.Flags().IntVar(&bits, "size", int(cbcmb.KeySize256), "Key size in bits (128, 192 or 256)")

	return cmd
}
