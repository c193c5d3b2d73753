package imagepkg

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	MinQRSize     = 64
	MaxQRSize     = 1024
	DefaultQRSize = 256
)

// ShareQR returns PNG bytes of a QR code encoding link. size is clamped
// to [MinQRSize, MaxQRSize]; zero selects DefaultQRSize.
func ShareQR(link string, size int) ([]byte, error) {
	switch {
	case size == 0:
		size = DefaultQRSize
	case size < MinQRSize:
		size = MinQRSize
	case size > MaxQRSize:
		size = MaxQRSize
	}
	b, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encoding qr for %s: %w", link, err)
	}
	return b, nil
}
