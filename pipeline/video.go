package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/khaledhikmat/nsfw-go/model"
	"github.com/khaledhikmat/nsfw-go/service/lgr"
)

const probeTimeout = 30 * time.Second

// extractVideo samples evenly spaced frames from the video at path using
// ffmpeg, bounded by cfg.MaxFrames and cfg.FrameTimeout. Frames produced
// before a timeout are kept; a timeout with zero frames is a TimeoutError.
// The frame directory is removed on every exit path.
func extractVideo(ctx context.Context, label, path string, cfg model.DetectionConfig) (extraction, error) {
	workDir, err := os.MkdirTemp("", "frames-"+uuid.NewString())
	if err != nil {
		return extraction{}, err
	}
	defer os.RemoveAll(workDir)

	duration := probeDuration(ctx, path)

	vctx, canxFn := context.WithTimeout(ctx, time.Duration(cfg.FrameTimeout)*time.Second)
	defer canxFn()

	pattern := filepath.Join(workDir, "frame-%03d.jpg")
	cmd := exec.CommandContext(vctx, "ffmpeg", sampleArgs(path, duration, cfg.MaxFrames, pattern)...)

	var stderr strings.Builder
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	timedOut := vctx.Err() != nil && errors.Is(vctx.Err(), context.DeadlineExceeded)

	frames, err := collectFrames(workDir)
	if err != nil {
		return extraction{}, err
	}

	truncated, err := sampleOutcome(label, len(frames), timedOut, stderr.String(), cfg.FrameTimeout)
	if err != nil {
		return extraction{}, err
	}

	if runErr != nil && !timedOut {
		// ffmpeg bailed mid-stream but produced frames; keep what we have
		lgr.Logger.Warn("ffmpeg exited early",
			slog.String("video", label),
			slog.Int("frames", len(frames)),
			slog.String("stderr", tail(stderr.String())),
		)
	}

	var ex extraction
	ex.truncated = truncated
	for i, framePath := range frames {
		data, err := os.ReadFile(framePath)
		if err != nil {
			ex.addFailed(fmt.Sprintf("frame#%d", i), &model.DecodeError{Source: framePath, Inner: err})
			continue
		}
		ex.add(fmt.Sprintf("frame#%d", i), data)
	}

	return ex, nil
}

// sampleOutcome decides what a finished sampling run means: zero frames on
// a timeout is a TimeoutError, zero frames otherwise is a DecodeError
// carrying the encoder's last output, and partial frames under a timeout
// proceed as a truncated extraction.
func sampleOutcome(label string, frameCount int, timedOut bool, stderr string, bound int) (bool, error) {
	if frameCount == 0 {
		if timedOut {
			return false, &model.TimeoutError{Source: label, Bound: bound}
		}
		return false, &model.DecodeError{Source: label, Inner: fmt.Errorf("ffmpeg: %s", tail(stderr))}
	}
	return timedOut, nil
}

// probeDuration asks ffprobe for the container duration in seconds.
// Zero means unknown; extraction then falls back to a 1 fps sweep.
func probeDuration(ctx context.Context, path string) float64 {
	pctx, canxFn := context.WithTimeout(ctx, probeTimeout)
	defer canxFn()

	cmd := exec.CommandContext(pctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return 0
	}

	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || d <= 0 {
		return 0
	}

	return d
}

// sampleArgs builds the ffmpeg invocation: maxFrames frames spaced
// duration/maxFrames apart, first frame at t=0. Unknown duration degrades
// to one frame per second until the frame cap.
func sampleArgs(path string, duration float64, maxFrames int, outPattern string) []string {
	fps := 1.0
	if duration > 0 {
		fps = float64(maxFrames) / duration
	}

	return []string{
		"-i", path,
		"-vf", fmt.Sprintf("fps=%.6f", fps),
		"-frames:v", strconv.Itoa(maxFrames),
		"-q:v", "2",
		"-y",
		outPattern,
	}
}

// collectFrames returns the produced frame files in sampling order.
func collectFrames(dir string) ([]string, error) {
	frames, err := filepath.Glob(filepath.Join(dir, "frame-*.jpg"))
	if err != nil {
		return nil, err
	}
	sort.Strings(frames)
	return frames, nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	const max = 300
	if len(s) > max {
		return s[len(s)-max:]
	}
	return s
}
