package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/shl-demo/internal/shl"
	"github.com/information-sharing-networks/shl-demo/internal/storage"
)

var revokeCmd = &cobra.Command{
	Use:   "revoke <link-id>",
	Short: "Revoke a shareable link",
	Long: `Delete every artifact belonging to a link so it can no longer be opened.

Anyone holding the link gets a not-found response from then on. Revocation
is idempotent - revoking an unknown or already revoked link succeeds.

Example:
  shl revoke nUboyLxC8cP2XdmWVbJcTjEL4sXtTNScY7JqtrFiRJ0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.NewStore(cmd.Context(), cfg, appLogger)
		if err != nil {
			return fmt.Errorf("failed to open artifact store: %w", err)
		}
		if closer, ok := store.(interface{ Close() }); ok {
			defer closer.Close()
		}

		revoker := shl.NewRevoker(store, appLogger)
		if err := revoker.Revoke(cmd.Context(), args[0]); err != nil {
			return err
		}

		fmt.Printf("✓ Link revoked: %s\n", args[0])
		return nil
	},
}
