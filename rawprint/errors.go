package rawprint

import (
	"errors"
	"fmt"
)

var (
	// ErrDestinationUnavailable reports that the destination could not be opened:
	// not found, permission denied or an unrepresentable name.
	ErrDestinationUnavailable = errors.New("rawprint: destination unavailable")

	// ErrJobStartFailed reports that the spooler refused to create a job.
	ErrJobStartFailed = errors.New("rawprint: job start failed")

	// ErrPageStartFailed reports that the spooler refused to start a page.
	ErrPageStartFailed = errors.New("rawprint: page start failed")

	// ErrWriteFailed reports that the payload transfer failed or was rejected.
	ErrWriteFailed = errors.New("rawprint: write failed")

	// ErrSpoolerUnsupported is returned by NewSystemSpooler on platforms
	// without a print spooler binding.
	ErrSpoolerUnsupported = errors.New("rawprint: system spooler not supported on this platform")
)

// PrintError describes a failed raw print call. Kind is one of the sentinel
// errors above and Err is the underlying cause, if any.
type PrintError struct {
	Op          string
	Destination string
	Kind        error
	Err         error
}

func (e *PrintError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s %q", e.Kind, e.Op, e.Destination)
	}
	return fmt.Sprintf("%v: %s %q: %v", e.Kind, e.Op, e.Destination, e.Err)
}

// Unwrap lets errors.Is match both the kind and the cause.
func (e *PrintError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op, destination string, cause error) error {
	return &PrintError{Op: op, Destination: destination, Kind: kind, Err: cause}
}
