//go:build !windows

package rawprint

// NewSystemSpooler reports ErrSpoolerUnsupported outside Windows.
func NewSystemSpooler() (Spooler, error) {
	return nil, ErrSpoolerUnsupported
}

// DefaultTransport returns a DeviceFileTransport on the OS filesystem.
func DefaultTransport() (Transport, error) {
	return NewDeviceFileTransport(nil), nil
}
