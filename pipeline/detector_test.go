package pipeline

import (
	"context"
	"errors"
	"image/color"
	"math"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/khaledhikmat/nsfw-go/model"
	"github.com/khaledhikmat/nsfw-go/service/config"
	"github.com/khaledhikmat/nsfw-go/service/inference"
)

func testServices(t *testing.T, scoreFn func(data []byte) (model.Score, error)) ServicesFactory {
	t.Helper()

	return ServicesFactory{
		CfgSvc:       config.NewEnv(),
		InferenceSvc: inference.NewFake(scoreFn),
	}
}

func testConfig() model.DetectionConfig {
	return model.DetectionConfig{
		NsfwThreshold:     0.8,
		MaxFrames:         20,
		FrameTimeout:      30,
		MaxArchiveDepth:   3,
		MaxArchiveEntries: 256,
		MaxFileSize:       1 << 30,
		DedupFrames:       true,
	}
}

func TestDetectSingleImage(t *testing.T) {
	path := writeTemp(t, "photo.png", makePNG(t, 16, 16, color.RGBA{R: 200, A: 255}))
	svcs := testServices(t, func(_ []byte) (model.Score, error) {
		return model.Score{Nsfw: 0.92, Normal: 0.08}, nil
	})

	verdict, err := Detect(context.Background(), svcs, path, "photo.png", testConfig())
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	if !verdict.IsNsfw {
		t.Errorf("IsNsfw = false, want true at 0.92 against 0.8")
	}
	if verdict.UnitsAttempted != 1 || verdict.UnitsFailed != 0 {
		t.Errorf("attempted/failed = %d/%d, want 1/0", verdict.UnitsAttempted, verdict.UnitsFailed)
	}
	if got := verdict.Nsfw + verdict.Normal; math.Abs(got-1.0) > 1e-9 {
		t.Errorf("nsfw+normal = %v, want 1.0", got)
	}
	if len(verdict.UnitScores) != 1 || verdict.UnitScores[0].UnitRef != "photo.png" {
		t.Errorf("unit scores = %+v, want single photo.png entry", verdict.UnitScores)
	}
}

func TestDetectGifImage(t *testing.T) {
	path := writeTemp(t, "anim.gif", makeGIF(t, 16, 16, color.RGBA{R: 200, A: 255}))

	// reject anything that is not jpeg, the way the OpenCV adapter would
	svcs := testServices(t, func(data []byte) (model.Score, error) {
		if len(data) < 2 || data[0] != 0xff || data[1] != 0xd8 {
			return model.Score{}, errors.New("unit bytes are not jpeg")
		}
		return model.Score{Nsfw: 0.3, Normal: 0.7}, nil
	})

	verdict, err := Detect(context.Background(), svcs, path, "anim.gif", testConfig())
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	if verdict.UnitsAttempted != 1 || verdict.UnitsFailed != 0 {
		t.Errorf("attempted/failed = %d/%d, want 1/0", verdict.UnitsAttempted, verdict.UnitsFailed)
	}
	if got := verdict.Nsfw + verdict.Normal; math.Abs(got-1.0) > 1e-9 {
		t.Errorf("nsfw+normal = %v, want 1.0", got)
	}
}

func TestDetectEmptyFile(t *testing.T) {
	path := writeTemp(t, "empty", nil)
	svcs := testServices(t, nil)

	_, err := Detect(context.Background(), svcs, path, "empty", testConfig())
	if !errors.Is(err, model.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat for an empty file", err)
	}
}

func TestDetectIsIdempotent(t *testing.T) {
	path := writeTemp(t, "photo.png", makePNG(t, 16, 16, color.RGBA{G: 90, A: 255}))
	svcs := testServices(t, func(data []byte) (model.Score, error) {
		// deterministic but data-dependent, like a real model
		return model.Score{Nsfw: float64(len(data)%7) / 10, Normal: 1 - float64(len(data)%7)/10}, nil
	})

	first, err := Detect(context.Background(), svcs, path, "photo.png", testConfig())
	if err != nil {
		t.Fatalf("first Detect: %v", err)
	}
	second, err := Detect(context.Background(), svcs, path, "photo.png", testConfig())
	if err != nil {
		t.Fatalf("second Detect: %v", err)
	}

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("verdicts differ across identical runs (-first +second):\n%s", diff)
	}
}

func TestDetectUnsupportedFormat(t *testing.T) {
	path := writeTemp(t, "notes.txt", []byte("plain text, nothing to classify"))
	svcs := testServices(t, nil)

	_, err := Detect(context.Background(), svcs, path, "notes.txt", testConfig())
	if !errors.Is(err, model.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestDetectArchiveWithNoUsableUnits(t *testing.T) {
	zipData := makeZip(t, []struct {
		Name string
		Data []byte
	}{
		{Name: "readme.txt", Data: []byte("skip me")},
		{Name: "data.csv", Data: []byte("a,b,c")},
	})
	path := writeTemp(t, "docs.zip", zipData)
	svcs := testServices(t, nil)

	verdict, err := Detect(context.Background(), svcs, path, "docs.zip", testConfig())
	if !errors.Is(err, model.ErrNoUsableUnits) {
		t.Fatalf("err = %v, want ErrNoUsableUnits", err)
	}
	if verdict.UnitsAttempted != 0 {
		t.Errorf("UnitsAttempted = %d, want 0 (unsupported members are skipped, not attempted)", verdict.UnitsAttempted)
	}
}

func TestDetectFileTooLarge(t *testing.T) {
	path := writeTemp(t, "huge.png", makePNG(t, 16, 16, color.RGBA{B: 40, A: 255}))
	svcs := testServices(t, nil)

	cfg := testConfig()
	cfg.MaxFileSize = 10

	_, err := Detect(context.Background(), svcs, path, "huge.png", cfg)
	if !errors.Is(err, model.ErrFileTooLarge) {
		t.Fatalf("err = %v, want ErrFileTooLarge", err)
	}
}

func TestDetectDedupClassifiesDuplicatesOnce(t *testing.T) {
	img := makePNG(t, 32, 32, color.RGBA{R: 60, G: 60, B: 60, A: 255})
	zipData := makeZip(t, []struct {
		Name string
		Data []byte
	}{
		{Name: "a.png", Data: img},
		{Name: "b.png", Data: img},
	})
	path := writeTemp(t, "pair.zip", zipData)

	var calls int32
	svcs := testServices(t, func(_ []byte) (model.Score, error) {
		atomic.AddInt32(&calls, 1)
		return model.Score{Nsfw: 0.4, Normal: 0.6}, nil
	})

	verdict, err := Detect(context.Background(), svcs, path, "pair.zip", testConfig())
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("classifier calls = %d, want 1 for two identical members", got)
	}
	if len(verdict.UnitScores) != 2 {
		t.Fatalf("unit scores = %d, want 2 (duplicates still reported)", len(verdict.UnitScores))
	}
	if verdict.UnitScores[0].Nsfw != verdict.UnitScores[1].Nsfw {
		t.Errorf("duplicate inherited a different score: %+v", verdict.UnitScores)
	}
	if verdict.UnitScores[0].UnitRef == verdict.UnitScores[1].UnitRef {
		t.Errorf("duplicates must keep their own refs, both got %q", verdict.UnitScores[0].UnitRef)
	}
}

func TestDetectInferenceFailureIsPerUnit(t *testing.T) {
	good := makePNG(t, 16, 16, color.RGBA{R: 250, A: 255})
	bad := gradientPNG(t)
	zipData := makeZip(t, []struct {
		Name string
		Data []byte
	}{
		{Name: "good.png", Data: good},
		{Name: "bad.png", Data: bad},
	})
	path := writeTemp(t, "mixed.zip", zipData)

	svcs := testServices(t, func(data []byte) (model.Score, error) {
		if len(data) == len(bad) {
			return model.Score{}, errors.New("model choked")
		}
		return model.Score{Nsfw: 0.1, Normal: 0.9}, nil
	})

	verdict, err := Detect(context.Background(), svcs, path, "mixed.zip", testConfig())
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	if verdict.UnitsAttempted != 2 || verdict.UnitsFailed != 1 {
		t.Errorf("attempted/failed = %d/%d, want 2/1", verdict.UnitsAttempted, verdict.UnitsFailed)
	}

	var failed int
	for _, us := range verdict.UnitScores {
		if us.Failed() {
			failed++
			if us.ErrorKind != model.ErrorKindInference {
				t.Errorf("ErrorKind = %q, want %q", us.ErrorKind, model.ErrorKindInference)
			}
		}
	}
	if failed != 1 {
		t.Errorf("failed unit scores = %d, want 1", failed)
	}
}
