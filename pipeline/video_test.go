package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/khaledhikmat/nsfw-go/model"
)

func TestSampleOutcome(t *testing.T) {
	tests := []struct {
		name          string
		frames        int
		timedOut      bool
		wantTruncated bool
		wantTimeout   bool
		wantDecode    bool
	}{
		{name: "all frames in time", frames: 10},
		{name: "partial frames before the deadline", frames: 3, timedOut: true, wantTruncated: true},
		{name: "deadline with nothing produced", frames: 0, timedOut: true, wantTimeout: true},
		{name: "ffmpeg failed outright", frames: 0, wantDecode: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			truncated, err := sampleOutcome("clip.mp4", tc.frames, tc.timedOut, "ffmpeg said no", 30)

			var te *model.TimeoutError
			var de *model.DecodeError
			switch {
			case tc.wantTimeout:
				if !errors.As(err, &te) {
					t.Fatalf("err = %v, want TimeoutError", err)
				}
				if te.Bound != 30 {
					t.Errorf("Bound = %d, want 30", te.Bound)
				}
			case tc.wantDecode:
				if !errors.As(err, &de) {
					t.Fatalf("err = %v, want DecodeError", err)
				}
				if !strings.Contains(err.Error(), "ffmpeg said no") {
					t.Errorf("err = %q, want the encoder output included", err)
				}
			default:
				if err != nil {
					t.Fatalf("err = %v, want nil", err)
				}
			}

			if truncated != tc.wantTruncated {
				t.Errorf("truncated = %v, want %v", truncated, tc.wantTruncated)
			}
		})
	}
}

func TestSampleArgsEvenSpacing(t *testing.T) {
	// 100s video, 10 frames: one frame every 10 seconds
	args := sampleArgs("/tmp/clip.mp4", 100, 10, "/tmp/out/frame-%03d.jpg")

	want := []string{
		"-i", "/tmp/clip.mp4",
		"-vf", "fps=0.100000",
		"-frames:v", "10",
		"-q:v", "2",
		"-y",
		"/tmp/out/frame-%03d.jpg",
	}
	if diff := cmp.Diff(want, args); diff != "" {
		t.Errorf("sampleArgs mismatch (-want +got):\n%s", diff)
	}
}

func TestSampleArgsUnknownDuration(t *testing.T) {
	// unknown duration degrades to one frame per second
	args := sampleArgs("/tmp/clip.mp4", 0, 20, "/tmp/out/frame-%03d.jpg")

	found := false
	for i, a := range args {
		if a == "-vf" && i+1 < len(args) {
			if args[i+1] != "fps=1.000000" {
				t.Errorf("fps filter = %q, want fps=1.000000", args[i+1])
			}
			found = true
		}
	}
	if !found {
		t.Fatal("no -vf argument produced")
	}
}

func TestCollectFramesOrdered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"frame-003.jpg", "frame-001.jpg", "frame-010.jpg", "frame-002.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	// unrelated files are ignored
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600); err != nil {
		t.Fatalf("write notes.txt: %v", err)
	}

	frames, err := collectFrames(dir)
	if err != nil {
		t.Fatalf("collectFrames: %v", err)
	}

	want := []string{
		filepath.Join(dir, "frame-001.jpg"),
		filepath.Join(dir, "frame-002.jpg"),
		filepath.Join(dir, "frame-003.jpg"),
		filepath.Join(dir, "frame-010.jpg"),
	}
	if diff := cmp.Diff(want, frames); diff != "" {
		t.Errorf("frame order mismatch (-want +got):\n%s", diff)
	}
}
