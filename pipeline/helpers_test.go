package pipeline

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// makePNG returns a valid PNG of the given dimensions filled with c.
func makePNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("makePNG: %v", err)
	}
	return buf.Bytes()
}

// makeGIF returns a valid single-frame GIF filled with c.
func makeGIF(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()

	img := image.NewPaletted(image.Rect(0, 0, w, h), color.Palette{c, color.RGBA{A: 255}})

	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		t.Fatalf("makeGIF: %v", err)
	}
	return buf.Bytes()
}

// makeZip builds an in-memory zip with the given members in order.
func makeZip(t *testing.T, members []struct {
	Name string
	Data []byte
}) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		w, err := zw.Create(m.Name)
		if err != nil {
			t.Fatalf("makeZip create %s: %v", m.Name, err)
		}
		if _, err := w.Write(m.Data); err != nil {
			t.Fatalf("makeZip write %s: %v", m.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("makeZip close: %v", err)
	}
	return buf.Bytes()
}

// writeTemp drops data under a temp dir with the given file name and
// returns the full path.
func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("writeTemp %s: %v", name, err)
	}
	return path
}
