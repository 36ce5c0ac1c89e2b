package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound record does not exist for this owner
	ErrNotFound = errors.New("video not found")
	// ErrInvalidInput request rejected before the pipeline starts
	ErrInvalidInput = errors.New("invalid input")
	// ErrMediaToolMissing ffmpeg / ffprobe not installed
	ErrMediaToolMissing = errors.New("media tool not found")
)

// StoreError failure surfaced by the object store
type StoreError struct {
	Message  string
	HTTPCode int
	Timeout  bool
}

func (e *StoreError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("store timeout: %s", e.Message)
	}
	return fmt.Sprintf("store error (http %d): %s", e.HTTPCode, e.Message)
}

// ProbeError unreadable or zero-duration input
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// OversizedPartError a generated part still exceeds the store limit
type OversizedPartError struct {
	Path  string
	Size  int64
	Limit int64
}

func (e *OversizedPartError) Error() string {
	return fmt.Sprintf("part %s is %d bytes, store limit is %d bytes", e.Path, e.Size, e.Limit)
}

// UploadError transfer failure after retries (or a permanent one)
type UploadError struct {
	PublicID  string
	Attempts  int
	Retryable bool
	Err       error
}

func (e *UploadError) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "retries exhausted"
	}
	return fmt.Sprintf("upload %s failed after %d attempt(s) (%s): %v", e.PublicID, e.Attempts, kind, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// ReconciliationError some remote ids could not be confirmed deleted
type ReconciliationError struct {
	FailedIDs []string
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("remote delete incomplete, failed ids: [%s]", strings.Join(e.FailedIDs, ", "))
}
