package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/shl-demo/internal/barcode"
	"github.com/information-sharing-networks/shl-demo/internal/shl"
	"github.com/information-sharing-networks/shl-demo/internal/storage"
)

var createCmd = &cobra.Command{
	Use:   "create <payload-file>",
	Short: "Create a shareable link for a JSON document",
	Long: `Encrypt a JSON document and store it as a shareable link.

The document is encrypted with a freshly generated key that ends up only in
the printed link - the stored artifacts are ciphertext. Optional attachments
are encrypted with the same key and listed in the link's manifest.

The artifact store is selected via STORAGE_BACKEND (see the server
configuration); use the same settings as the server that will serve the link.

Example:
  shl create discharge-summary.json --label "Discharge summary" --passcode 1234 --expires-in 168h --qr link.png`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

var (
	createLabel       string
	createPasscode    string
	createMaxAccesses int64
	createExpiresIn   time.Duration
	createContentType string
	createAttachments []string
	createQRPath      string
)

func init() {
	createCmd.Flags().StringVar(&createLabel, "label", "", "Short description embedded in the link (max 80 characters)")
	createCmd.Flags().StringVar(&createPasscode, "passcode", "", "Passcode the recipient must present when opening the link")
	createCmd.Flags().Int64Var(&createMaxAccesses, "max-accesses", 0, "Cap on successful manifest retrievals (0 = unlimited)")
	createCmd.Flags().DurationVar(&createExpiresIn, "expires-in", 0, "Link lifetime, e.g. 72h (0 = no expiry)")
	createCmd.Flags().StringVar(&createContentType, "content-type", "", "Payload media type (default application/fhir+json)")
	createCmd.Flags().StringArrayVar(&createAttachments, "attach", nil, "Attachment as <content-type>=<file>, repeatable")
	createCmd.Flags().StringVar(&createQRPath, "qr", "", "Write a QR code PNG of the link to this file")
}

func runCreate(cmd *cobra.Command, args []string) error {
	payload, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read payload file: %w", err)
	}

	attachments, err := loadAttachments(createAttachments)
	if err != nil {
		return err
	}

	store, err := storage.NewStore(cmd.Context(), cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to open artifact store: %w", err)
	}
	if closer, ok := store.(interface{ Close() }); ok {
		defer closer.Close()
	}

	var renderer barcode.Renderer
	if createQRPath != "" {
		renderer = barcode.NewQRRenderer(cfg.QRSize)
	}

	creator := shl.NewCreator(store, renderer, shl.CreatorConfig{
		Environment:        cfg.Environment,
		ViewerURL:          cfg.ViewerURL,
		DefaultContentType: cfg.DefaultContentType,
	}, appLogger)

	policy := shl.AccessPolicy{
		Passcode:    createPasscode,
		MaxAccesses: createMaxAccesses,
		ExpiresIn:   createExpiresIn,
	}
	if createPasscode != "" {
		policy.MaxPasscodeFailures = cfg.DefaultPasscodeMaxFailures
	}

	result, err := creator.CreateLink(cmd.Context(), shl.CreateRequest{
		Payload:     payload,
		ContentType: createContentType,
		Label:       createLabel,
		Attachments: attachments,
		Policy:      policy,
	})
	if err != nil {
		return err
	}

	if createQRPath != "" {
		if err := os.WriteFile(createQRPath, result.Barcode, 0o644); err != nil {
			return fmt.Errorf("failed to write QR code: %w", err)
		}
	}

	fmt.Printf("✓ Link created: %s\n", result.ID)
	fmt.Printf("\n%s\n\n", result.Link)
	if result.Passcode != "" {
		fmt.Printf("Passcode (hand to the recipient out of band): %s\n", result.Passcode)
	}
	if result.ExpiresAt != nil {
		fmt.Printf("Expires: %s\n", result.ExpiresAt.Format(time.RFC3339))
	}
	if createQRPath != "" {
		fmt.Printf("QR code: %s\n", createQRPath)
	}

	return nil
}

func loadAttachments(specs []string) ([]shl.Attachment, error) {
	attachments := make([]shl.Attachment, 0, len(specs))
	for _, spec := range specs {
		contentType, file, ok := strings.Cut(spec, "=")
		if !ok || contentType == "" || file == "" {
			return nil, fmt.Errorf("invalid --attach value %q, expected <content-type>=<file>", spec)
		}

		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read attachment %s: %w", file, err)
		}

		attachments = append(attachments, shl.Attachment{
			ContentType: contentType,
			Data:        data,
		})
	}
	return attachments, nil
}
