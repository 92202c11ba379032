package pipeline

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// gradientPNG produces an image whose dHash differs from a flat one.
func gradientPNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("gradientPNG: %v", err)
	}
	return buf.Bytes()
}

func TestDedupUnitsGroupsIdenticalImages(t *testing.T) {
	same := makePNG(t, 32, 32, color.RGBA{R: 120, G: 30, B: 30, A: 255})
	other := gradientPNG(t)

	attempts := []Attempt{
		{Index: 0, SourceLabel: "frame#0", Data: same},
		{Index: 1, SourceLabel: "frame#1", Data: same},
		{Index: 2, SourceLabel: "frame#2", Data: other},
	}

	reps := dedupUnits(attempts)

	if reps[0] != 0 {
		t.Errorf("reps[0] = %d, want 0 (first occurrence is its own representative)", reps[0])
	}
	if reps[1] != 0 {
		t.Errorf("reps[1] = %d, want 0 (identical image reuses representative)", reps[1])
	}
	if reps[2] != 2 {
		t.Errorf("reps[2] = %d, want 2 (different image stays its own representative)", reps[2])
	}
}

func TestDedupUnitsSkipsFailedAndUndecodable(t *testing.T) {
	attempts := []Attempt{
		{Index: 0, SourceLabel: "page#1", Err: errFake},
		{Index: 1, SourceLabel: "page#2", Data: []byte("not an image")},
	}

	reps := dedupUnits(attempts)

	if _, ok := reps[0]; ok {
		t.Error("failed attempts must not get a representative")
	}
	if reps[1] != 1 {
		t.Errorf("reps[1] = %d, want 1 (undecodable hashes degrade to unique)", reps[1])
	}
}

var errFake = &fakeErr{}

type fakeErr struct{}

func (*fakeErr) Error() string { return "fake" }
