package cli

import (
	"fmt"

	"github.com/yksirotta/credflow/internal/cipher"

	"github.com/spf13/cobra"
)

func NewKeygenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new instance encryption key",
		Long:  "Generates a fresh base64-encoded 256-bit key for CREDFLOW_ENCRYPTION_KEY.",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := cipher.GenerateKey()
			if err != nil {
				return fmt.Errorf("failed to generate key: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}
