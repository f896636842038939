// Package barcode renders shareable link strings as scannable images.
//
// Links are long (the payload embeds a URL and a key), so paper and
// screen-to-screen handoff go through a QR code rather than typing.
package barcode

import (
	"bytes"
	"fmt"
	"image/png"

	barcodelib "github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

// Renderer produces a scannable image for a link string.
type Renderer interface {
	Render(link string) ([]byte, error)
}

// DefaultSize is the edge length in pixels of rendered QR codes.
const DefaultSize = 512

// QRRenderer renders links as square PNG QR codes with medium error
// correction (QR codes printed on discharge paperwork get creased, so
// some redundancy is wanted).
type QRRenderer struct {
	size int
}

// NewQRRenderer returns a renderer producing size x size pixel images.
// Non-positive sizes fall back to DefaultSize.
func NewQRRenderer(size int) *QRRenderer {
	if size <= 0 {
		size = DefaultSize
	}
	return &QRRenderer{size: size}
}

// Render encodes the link as a PNG QR code.
func (r *QRRenderer) Render(link string) ([]byte, error) {
	if link == "" {
		return nil, fmt.Errorf("cannot render an empty link")
	}

	code, err := qr.Encode(link, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	scaled, err := barcodelib.Scale(code, r.size, r.size)
	if err != nil {
		return nil, fmt.Errorf("failed to scale QR code to %dx%d: %w", r.size, r.size, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("failed to encode QR code as PNG: %w", err)
	}
	return buf.Bytes(), nil
}
