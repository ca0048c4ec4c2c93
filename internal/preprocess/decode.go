package preprocess

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxPixels caps width*height of a decoded image, matching PIL's
// decompression bomb limit.
const MaxPixels = 178956970

var (
	// ErrEmptyImage is returned for zero-length uploads and zero-sized images.
	ErrEmptyImage = errors.New("empty image")
	// ErrImageTooLarge is returned when the header declares more than
	// MaxPixels pixels. Nothing is decoded in that case.
	ErrImageTooLarge = errors.New("image too large")
)

// Decode reads an image in any registered format (JPEG, PNG, GIF, BMP, TIFF,
// WebP) and returns it with its format name.
func Decode(r io.Reader) (image.Image, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", errors.Wrap(err, "read image")
	}
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.Wrap(err, "decode image")
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > MaxPixels {
		return nil, format, errors.Wrapf(ErrImageTooLarge, "%dx%d", cfg.Width, cfg.Height)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.Wrap(err, "decode image")
	}
	if img.Bounds().Empty() {
		return nil, format, ErrEmptyImage
	}
	return img, format, nil
}
