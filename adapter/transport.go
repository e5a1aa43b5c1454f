package adapter

import (
	"errors"

	"github.com/nixxel-company-limited/rawprint/rawprint"
)

// KindUSB is the transport kind registered with rawprint.
const KindUSB = "usb"

func init() {
	rawprint.Register(KindUSB, func() (rawprint.Transport, error) {
		return NewUSBTransport(nil), nil
	})
}

// USBTransport sends each payload to a USB printer over a fresh Adapter
// connection. The document name is ignored.
type USBTransport struct {
	open Opener
}

// NewUSBTransport creates a transport that resolves destinations with open.
// A nil open selects OpenUSB.
func NewUSBTransport(open Opener) *USBTransport {
	if open == nil {
		open = OpenUSB
	}
	return &USBTransport{open: open}
}

// WriteRaw resolves destination, opens the printer, writes payload in one
// transfer and closes the adapter exactly once.
func (t *USBTransport) WriteRaw(destination string, payload []byte, _ string) (int, error) {
	if destination == "" {
		return 0, &rawprint.PrintError{Op: "open", Kind: rawprint.ErrDestinationUnavailable,
			Err: errors.New("empty usb destination")}
	}

	a, err := t.open(destination)
	if err != nil {
		return 0, &rawprint.PrintError{Op: "open", Destination: destination,
			Kind: rawprint.ErrDestinationUnavailable, Err: err}
	}
	defer a.Close() //nolint:errcheck // release is best-effort

	if !a.IsOpen() {
		if err := a.Open(); err != nil {
			return 0, &rawprint.PrintError{Op: "open", Destination: destination,
				Kind: rawprint.ErrDestinationUnavailable, Err: err}
		}
	}

	n, err := a.Write(payload)
	if err != nil {
		return n, &rawprint.PrintError{Op: "write", Destination: destination,
			Kind: rawprint.ErrWriteFailed, Err: err}
	}
	return n, nil
}
