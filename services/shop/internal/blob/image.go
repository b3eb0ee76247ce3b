package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"

	"github.com/google/uuid"
	"github.com/nfnt/resize"
)

const (
	// MaxImageWidth is the width uploaded catalog images are scaled down to.
	MaxImageWidth = 800
	jpegQuality   = 80
	// MaxImagePixels bounds the decoded size of an upload.
	MaxImagePixels = 40_000_000
)

var ErrImageTooLarge = errors.New("image dimensions too large")

// PrepareImage decodes a PNG or JPEG, scales it down to MaxImageWidth
// keeping the aspect ratio and re-encodes it as JPEG.
func PrepareImage(r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > MaxImagePixels/cfg.Height {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	if img.Bounds().Dx() > MaxImageWidth {
		img = resize.Resize(MaxImageWidth, 0, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// StoreImage prepares an uploaded image and stores it under a fresh name in
// container, returning its URL.
func StoreImage(ctx context.Context, s Storage, container string, r io.Reader) (string, error) {
	data, err := PrepareImage(r)
	if err != nil {
		return "", err
	}
	return s.Upload(ctx, container, uuid.NewString()+".jpg", data, "image/jpeg")
}
