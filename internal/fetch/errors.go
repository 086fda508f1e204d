package fetch

import (
	"errors"
	"fmt"
)

// Reason categorizes why a fetch produced no source text.
type Reason string

const (
	ReasonNetwork  Reason = "network"
	ReasonStatus   Reason = "status"
	ReasonArchive  Reason = "archive"
	ReasonRoot     Reason = "root"
	ReasonNotFound Reason = "not_found"
	ReasonIO       Reason = "io"
)

// Error is the only error type returned by Fetcher.Fetch.
type Error struct {
	Reason     Reason
	URL        string
	Path       string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	switch e.Reason {
	case ReasonNetwork:
		return fmt.Sprintf("error fetching archive from %s: %v", e.URL, e.Err)
	case ReasonStatus:
		return fmt.Sprintf("error fetching archive from %s: status %d", e.URL, e.StatusCode)
	case ReasonArchive:
		return fmt.Sprintf("archive from %s is not a valid zip archive or is corrupted: %v", e.URL, e.Err)
	case ReasonRoot:
		return fmt.Sprintf("could not determine the root directory within the archive: %v", e.Err)
	case ReasonNotFound:
		if e.Err != nil {
			return fmt.Sprintf("target file %q not found after extraction: %v", e.Path, e.Err)
		}
		return fmt.Sprintf("target file %q not found after extraction", e.Path)
	default:
		return fmt.Sprintf("io error during file operations: %v", e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsReason reports whether err is a fetch Error with the given reason.
func IsReason(err error, reason Reason) bool {
	var fetchErr *Error
	if !errors.As(err, &fetchErr) {
		return false
	}
	return fetchErr.Reason == reason
}

func newError(reason Reason, req Request, err error) *Error {
	return &Error{Reason: reason, URL: req.ArchiveURL, Path: req.RelativePath, Err: err}
}
