package adapter

// Adapter defines a connection to a single printer device
type Adapter interface {
	// Open opens the connection to the printer
	Open() error

	// Write sends data to the printer
	Write(data []byte) (int, error)

	// Close releases the connection to the printer
	Close() error

	// IsOpen returns whether the connection is open
	IsOpen() bool
}

// Opener resolves a destination string to an unopened Adapter
type Opener func(destination string) (Adapter, error)
