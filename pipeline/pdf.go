package pipeline

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"

	"github.com/khaledhikmat/nsfw-go/model"
)

// Units larger than this are downscaled before classification.
const maxUnitDimension = 1600

// extractPdf renders each page to a JPEG unit, up to cfg.MaxFrames pages.
// More pages than the cap is a truncation, not an error. A page that fails
// to render is recorded as a failed attempt; the rest still proceed.
func extractPdf(label string, data []byte, cfg model.DetectionConfig) (extraction, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return extraction{}, &model.DecodeError{Source: label, Inner: err}
	}
	defer doc.Close()

	var ex extraction

	pages := doc.NumPage()
	if pages > cfg.MaxFrames {
		pages = cfg.MaxFrames
		ex.truncated = true
	}

	for i := 0; i < pages; i++ {
		pageLabel := fmt.Sprintf("page#%d", i+1)

		img, err := doc.Image(i)
		if err != nil {
			ex.addFailed(pageLabel, &model.DecodeError{Source: pageLabel, Inner: err})
			continue
		}

		encoded, err := encodeJPEG(img)
		if err != nil {
			ex.addFailed(pageLabel, &model.DecodeError{Source: pageLabel, Inner: err})
			continue
		}

		ex.add(pageLabel, encoded)
	}

	return ex, nil
}

// encodeJPEG flattens any in-memory image into a bounded JPEG unit.
func encodeJPEG(img image.Image) ([]byte, error) {
	bounds := img.Bounds()
	if bounds.Dx() > maxUnitDimension || bounds.Dy() > maxUnitDimension {
		img = imaging.Fit(img, maxUnitDimension, maxUnitDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
