package pipeline

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/khaledhikmat/nsfw-go/model"
)

// extractImage yields the file itself as the single unit. The bytes are
// decode-checked up front so an unreadable image fails the whole request
// with a DecodeError instead of surfacing later as an inference failure.
// The classifier decodes units with OpenCV, which has no gif support, so
// a gif is handed over as its first frame re-encoded to JPEG.
func extractImage(label string, data []byte) (extraction, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return extraction{}, &model.DecodeError{Source: label, Inner: err}
	}

	if format == "gif" {
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return extraction{}, &model.DecodeError{Source: label, Inner: err}
		}
		data, err = encodeJPEG(img)
		if err != nil {
			return extraction{}, &model.DecodeError{Source: label, Inner: err}
		}
	}

	var ex extraction
	ex.add(label, data)
	return ex, nil
}
