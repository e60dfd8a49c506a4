package analysis

import (
	"errors"
	"fmt"
)

// ErrUnsupportedProject is the sentinel matched by errors.Is for any
// UnsupportedProjectError.
var ErrUnsupportedProject = errors.New("no supported language detected")

// UnsupportedProjectError means no detection probe matched the project
// root for the requested artifact. It is the only failure that yields
// no result at all; everything file-level degrades into ParseErrors.
type UnsupportedProjectError struct {
	Root     string
	Artifact string
}

func (e *UnsupportedProjectError) Error() string {
	if e.Artifact != "" {
		return fmt.Sprintf("no supported language detected in %s for %s analysis", e.Root, e.Artifact)
	}
	return fmt.Sprintf("no supported language detected in %s", e.Root)
}

func (e *UnsupportedProjectError) Is(target error) bool {
	return target == ErrUnsupportedProject
}

// ParseError records one file that failed extraction. Failures are
// aggregated into the result, never allowed to abort the parse.
type ParseError struct {
	FilePath string `json:"file_path"`
	Message  string `json:"message"`
}

func (e ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.FilePath, e.Message)
}
