package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/yksirotta/credflow/internal/cipher"
	"github.com/yksirotta/credflow/internal/initialization"
	"github.com/yksirotta/credflow/internal/managers"
	"github.com/yksirotta/credflow/internal/repositories"
	"github.com/yksirotta/credflow/pkg/domain"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewCheckCommand exercises the configured encryption key against the
// in-memory repository: encrypt, store, load, decrypt, compare. Useful as an
// operational smoke test before pointing the pipeline at real credentials.
func NewCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the configured encryption key with a credential round-trip",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := initialization.LoadConfig()
			if err != nil {
				return err
			}
			if config.EncryptionKey == "" {
				return fmt.Errorf("no encryption key configured; run 'credflow keygen' and set CREDFLOW_ENCRYPTION_KEY")
			}

			c, err := cipher.NewCipher(config.EncryptionKey)
			if err != nil {
				return fmt.Errorf("invalid encryption key: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			repo := repositories.NewMemoryCredentialRepository()
			manager := managers.NewCredentialManager(repo, c)

			id := uuid.NewString()
			if err := repo.Save(ctx, domain.Credential{ID: id, Name: "self-check", TypeName: "selfCheckApi"}); err != nil {
				return err
			}

			probe := domain.DecryptedCredentialData{"probe": uuid.NewString()}
			if err := manager.UpdateCredentialData(ctx, id, probe); err != nil {
				return fmt.Errorf("encrypt-and-save failed: %w", err)
			}

			decrypted, err := manager.GetDecryptedCredential(ctx, id)
			if err != nil {
				return fmt.Errorf("load-and-decrypt failed: %w", err)
			}
			if decrypted["probe"] != probe["probe"] {
				return fmt.Errorf("round-trip mismatch: credential data corrupted")
			}

			fmt.Fprintln(cmd.OutOrStdout(), "OK: credential round-trip succeeded")
			return nil
		},
	}
}
