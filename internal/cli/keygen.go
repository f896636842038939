package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/shl-demo/internal/crypto"
)

// keygenCmd represents the keygen command
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate link key material",
	Long: `Generate a link id and a 256-bit encryption key without storing anything.

Useful for test fixtures and for assembling links whose artifacts are
hosted elsewhere. Both values are printed base64url encoded, the form they
take inside links and URLs.

Example:
  shl keygen`,
	RunE: runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}

func runKeygen(cmd *cobra.Command, args []string) error {
	linkID, err := crypto.GenerateLinkID()
	if err != nil {
		return fmt.Errorf("failed to generate link id: %w", err)
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	encoded, err := crypto.EncodeKey(key)
	if err != nil {
		return fmt.Errorf("failed to encode key: %w", err)
	}

	fmt.Printf("✓ Link id: %s\n", linkID)
	fmt.Printf("✓ Key:     %s\n", encoded)

	return nil
}
