package metadata

import (
	"errors"
	"fmt"
)

var (
	// ErrNoConfidentMatch means no candidate cleared the confidence
	// threshold. A valid terminal outcome, not a pipeline failure.
	ErrNoConfidentMatch = errors.New("no confident match")

	// ErrProviderUnavailable covers network errors, timeouts and 5xx
	// responses after retries were exhausted.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrProviderAuth means credentials were rejected or missing. Never
	// retried; the provider is disabled for the remainder of the run.
	ErrProviderAuth = errors.New("provider auth rejected")

	// ErrNoArtwork means no artwork source produced an image.
	ErrNoArtwork = errors.New("no artwork available")
)

// TagWriteError is fatal for its item: the file could not be read, parsed
// or written. The atomic-write guarantee means the original file is left
// untouched.
type TagWriteError struct {
	Path string
	Err  error
}

func (e *TagWriteError) Error() string {
	return fmt.Sprintf("tag write failed for %s: %v", e.Path, e.Err)
}

func (e *TagWriteError) Unwrap() error { return e.Err }
