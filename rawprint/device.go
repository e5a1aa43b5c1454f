package rawprint

import (
	"os"

	"github.com/spf13/afero"
)

// DeviceFileTransport writes payloads to a device special file such as
// /dev/usb/lp0. The document name is ignored.
type DeviceFileTransport struct {
	fs         afero.Fs
	maxPayload uint64
}

// NewDeviceFileTransport creates a transport over fs. A nil fs selects the
// operating system filesystem.
func NewDeviceFileTransport(fs afero.Fs) *DeviceFileTransport {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &DeviceFileTransport{fs: fs, maxPayload: MaxPayloadSize}
}

// WriteRaw opens device for writing, writes payload in one call and closes
// the device. Closing flushes the write; a close failure fails the call.
func (t *DeviceFileTransport) WriteRaw(device string, payload []byte, _ string) (int, error) {
	if !validDestination(device) {
		return 0, newError(ErrDestinationUnavailable, "open", device, os.ErrNotExist)
	}
	if err := checkPayloadSize("write", device, payload, t.maxPayload); err != nil {
		return 0, err
	}

	f, err := t.fs.OpenFile(device, os.O_WRONLY, 0)
	if err != nil {
		return 0, newError(ErrDestinationUnavailable, "open", device, err)
	}

	n, err := f.Write(payload)
	if err != nil {
		f.Close()
		return n, newError(ErrWriteFailed, "write", device, err)
	}
	if err := f.Close(); err != nil {
		return n, newError(ErrWriteFailed, "flush", device, err)
	}
	return n, nil
}
