package bedrock

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

const (
	// maxImageSide bounds the longer edge of an uploaded photo.
	maxImageSide = 1024
	jpegQuality  = 85
)

// prepareImage decodes any supported photo, applies EXIF orientation, fits it within
// maxImageSide and re-encodes it as JPEG.
func prepareImage(raw []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	if b.Dx() > maxImageSide || b.Dy() > maxImageSide {
		img = imaging.Fit(img, maxImageSide, maxImageSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
