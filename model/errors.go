package model

import (
	"errors"
	"fmt"
)

// Error kinds recorded on failed unit scores.
const (
	ErrorKindDecode    = "DecodeError"
	ErrorKindTimeout   = "TimeoutError"
	ErrorKindInference = "InferenceError"
)

// ErrUnsupportedFormat means the submitted file itself matched no known
// media kind. This is a user-visible outcome, not a server fault.
var ErrUnsupportedFormat = errors.New("unsupported file type")

// ErrNoUsableUnits means extraction and scoring produced nothing the
// aggregator can work with. Distinct from a safe verdict.
var ErrNoUsableUnits = errors.New("no usable units to classify")

// ErrFileTooLarge means the submitted file exceeds the configured cap.
var ErrFileTooLarge = errors.New("file too large")

// DecodeError means a file or unit could not be decoded at all.
type DecodeError struct {
	Source string
	Inner  error
}

func (e *DecodeError) Error() string {
	if e.Inner == nil {
		return fmt.Sprintf("decode %s failed", e.Source)
	}
	return fmt.Sprintf("decode %s failed: %v", e.Source, e.Inner)
}

func (e *DecodeError) Unwrap() error {
	return e.Inner
}

// TimeoutError means an extraction exceeded its wall-clock bound before
// producing anything usable.
type TimeoutError struct {
	Source string
	Bound  int // seconds
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("extraction of %s exceeded %d seconds", e.Source, e.Bound)
}

// InferenceError means the classifier capability failed for one unit.
type InferenceError struct {
	UnitRef string
	Inner   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference on %s failed: %v", e.UnitRef, e.Inner)
}

func (e *InferenceError) Unwrap() error {
	return e.Inner
}

// KindOf maps a taxonomy error to the kind string recorded on unit scores.
func KindOf(err error) string {
	var de *DecodeError
	var te *TimeoutError
	var ie *InferenceError
	switch {
	case errors.As(err, &te):
		return ErrorKindTimeout
	case errors.As(err, &ie):
		return ErrorKindInference
	case errors.As(err, &de):
		return ErrorKindDecode
	default:
		return ErrorKindDecode
	}
}
