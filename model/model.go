package model

import (
	"fmt"
	"runtime/debug"
)

type CustomError struct {
	Stage      string                 `json:"stage"`
	Inner      error                  `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

func (e CustomError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e CustomError) Unwrap() error {
	return e.Inner
}

func GenError(stage string, err error, misc map[string]interface{}, messagef string, args ...interface{}) CustomError {
	return CustomError{
		Stage:      stage,
		Inner:      err,
		Message:    fmt.Sprintf(messagef, args...),
		StackTrace: string(debug.Stack()),
		Misc:       misc,
	}
}

// FormatKind is the coarse media category a submitted file resolves to.
type FormatKind string

const (
	FormatImage       FormatKind = "image"
	FormatPdf         FormatKind = "pdf"
	FormatVideo       FormatKind = "video"
	FormatArchive     FormatKind = "archive"
	FormatUnsupported FormatKind = "unsupported"
)

// DetectionConfig is the immutable per-run snapshot of the detection knobs.
// Defaults come from the config service at process start; a request may
// override individual fields before the run starts, never after.
type DetectionConfig struct {
	NsfwThreshold     float64 `json:"nsfwThreshold"`
	MaxFrames         int     `json:"maxFrames"`
	FrameTimeout      int     `json:"frameTimeoutSeconds"`
	MaxArchiveDepth   int     `json:"maxArchiveDepth"`
	MaxArchiveEntries int     `json:"maxArchiveEntries"`
	MaxFileSize       int64   `json:"maxFileSize"`
	DedupFrames       bool    `json:"dedupFrames"`
}

// Score is a normalized two-class result. Nsfw + Normal sum to ~1.0.
type Score struct {
	Nsfw   float64 `json:"nsfw"`
	Normal float64 `json:"normal"`
}

// UnitScore is the outcome of classifying one unit. Failed units carry
// ErrorKind and are excluded from the numeric aggregate but never dropped.
type UnitScore struct {
	UnitRef   string  `json:"unitRef"`
	Nsfw      float64 `json:"nsfw"`
	Normal    float64 `json:"normal"`
	ErrorKind string  `json:"error,omitempty"`
}

func (s UnitScore) Failed() bool {
	return s.ErrorKind != ""
}

// Verdict is the single aggregate result for one request.
type Verdict struct {
	IsNsfw         bool        `json:"isNsfw"`
	Nsfw           float64     `json:"nsfw"`
	Normal         float64     `json:"normal"`
	UnitScores     []UnitScore `json:"unitScores"`
	UnitsAttempted int         `json:"unitsAttempted"`
	UnitsFailed    int         `json:"unitsFailed"`
	Truncated      bool        `json:"truncated"`
}

// ScanRecord is one persisted monitor-mode result for a media file.
type ScanRecord struct {
	ID        string  `json:"id"`
	Path      string  `json:"path"`
	Name      string  `json:"name"`
	Size      int64   `json:"size"`
	ModTime   int64   `json:"modTime"`
	IsNsfw    bool    `json:"isNsfw"`
	Nsfw      float64 `json:"nsfw"`
	Normal    float64 `json:"normal"`
	Attempted int     `json:"unitsAttempted"`
	Failed    int     `json:"unitsFailed"`
	Error     string  `json:"error,omitempty"`
	ScannedAt int64   `json:"scannedAt"`
}

// Fresh reports whether the record still describes the file as it is on
// disk. A changed size or mod time forces a re-scan.
func (r ScanRecord) Fresh(size, modTime int64) bool {
	return r.Size == size && r.ModTime == modTime
}

type MonitorStats struct {
	Scanned   int   `json:"scanned"`
	Skipped   int   `json:"skipped"`
	Flagged   int   `json:"flagged"`
	Errors    int   `json:"errors"`
	Uptime    int64 `json:"uptime"`
	Timestamp int64 `json:"timestamp"`
}
