package rawprint

import (
	"errors"
)

// DatatypeRaw tells the spooler to pass the payload through verbatim.
const DatatypeRaw = "RAW"

// Handle is an open printer handle owned by a single WriteRaw call.
type Handle uintptr

// Spooler is the platform print-spooler API the SpoolerTransport drives.
type Spooler interface {
	Open(printer string) (Handle, error)
	StartDoc(h Handle, documentName, datatype string) (jobID uint32, err error)
	StartPage(h Handle) error
	Write(h Handle, p []byte) (uint32, error)
	EndPage(h Handle) error
	EndDoc(h Handle) error
	Close(h Handle) error
}

// SpoolerTransport submits each payload as one raw spooler job.
type SpoolerTransport struct {
	spooler    Spooler
	maxPayload uint64
}

// NewSpoolerTransport creates a transport over the given spooler.
func NewSpoolerTransport(sp Spooler) *SpoolerTransport {
	return &SpoolerTransport{spooler: sp, maxPayload: MaxPayloadSize}
}

// WriteRaw opens the named printer, runs one raw job containing payload and
// closes the printer. Once the printer is open, the handle is closed exactly
// once on every return path, and once the document has started, EndDoc runs
// whatever the later steps report.
func (t *SpoolerTransport) WriteRaw(printer string, payload []byte, documentName string) (int, error) {
	if !validDestination(printer) {
		return 0, newError(ErrDestinationUnavailable, "open", printer, errors.New("invalid printer name"))
	}
	if err := checkPayloadSize("write", printer, payload, t.maxPayload); err != nil {
		return 0, err
	}

	h, err := t.spooler.Open(printer)
	if err != nil {
		return 0, newError(ErrDestinationUnavailable, "open", printer, err)
	}
	defer t.spooler.Close(h) //nolint:errcheck // release is best-effort

	jobID, err := t.spooler.StartDoc(h, documentNameOrDefault(documentName), DatatypeRaw)
	if err != nil || jobID == 0 {
		return 0, newError(ErrJobStartFailed, "start document", printer, err)
	}
	defer t.spooler.EndDoc(h) //nolint:errcheck

	if err := t.spooler.StartPage(h); err != nil {
		return 0, newError(ErrPageStartFailed, "start page", printer, err)
	}

	n, writeErr := t.spooler.Write(h, payload)
	_ = t.spooler.EndPage(h)

	if writeErr != nil {
		return 0, newError(ErrWriteFailed, "write", printer, writeErr)
	}
	return int(n), nil
}
