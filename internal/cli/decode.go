package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/shl-demo/internal/shl"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <link>",
	Short: "Decode a shareable link",
	Long: `Decode a shareable link and print its payload as JSON.

Accepts bare shlink:/ strings and viewer-prefixed links. The printed key
decrypts the linked files, so treat the output with the same care as the
link itself.

Example:
  shl decode 'shlink:/eyJ1cmwiOi4uLn0'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := shl.DecodeLink(args[0])
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to render link payload: %w", err)
		}

		fmt.Println(string(out))
		return nil
	},
}
