// Package thumbs generates resized image derivatives. It consumes jobs from
// the thumbnail queue and writes one derivative blob per target width next
// to the primary blob.
package thumbs

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// decodeImage decodes a raster image and remembers its source format so the
// derivative can be re-encoded in kind.
func decodeImage(data []byte) (image.Image, imaging.Format, error) {
	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("decode image: %w", err)
	}

	format, err := imaging.FormatFromExtension(name)
	if err != nil {
		// Decodable but not re-encodable by imaging; fall back to JPEG.
		format = imaging.JPEG
	}

	return img, format, nil
}

// renderThumbnail scales img to the target width, preserving aspect ratio,
// and encodes it in format. Package variable so tests can stand in a slow
// render.
var renderThumbnail = func(img image.Image, width int, format imaging.Format) ([]byte, error) {
	resized := imaging.Resize(img, width, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format); err != nil {
		return nil, fmt.Errorf("encode thumbnail (width %d): %w", width, err)
	}

	return buf.Bytes(), nil
}
