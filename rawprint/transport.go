// Package rawprint sends raw printer command-language payloads (ZPL, EPL,
// ESC/POS) straight to a printer, bypassing any driver rendering.
package rawprint

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

const (
	// DefaultDocumentName labels spooler jobs when the caller gives no name.
	DefaultDocumentName = "RAW_Print"

	// MaxPayloadSize is the largest payload accepted in one call. The spooler
	// reports transferred bytes as a 32-bit count, so every count returned
	// widens to int without loss.
	MaxPayloadSize = math.MaxUint32
)

// Transport writes one raw payload to a destination and reports how many
// bytes were transferred. A short transfer is not an error.
type Transport interface {
	// WriteRaw sends payload to destination as a single job. An empty
	// documentName selects DefaultDocumentName.
	WriteRaw(destination string, payload []byte, documentName string) (int, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(destination string, payload []byte, documentName string) (int, error)

func (f TransportFunc) WriteRaw(destination string, payload []byte, documentName string) (int, error) {
	return f(destination, payload, documentName)
}

// Transport kinds understood by NewTransport.
const (
	KindAuto    = "auto"
	KindSpooler = "spooler"
	KindDevice  = "device"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]func() (Transport, error){
		KindSpooler: func() (Transport, error) {
			sp, err := NewSystemSpooler()
			if err != nil {
				return nil, err
			}
			return NewSpoolerTransport(sp), nil
		},
		KindDevice: func() (Transport, error) {
			return NewDeviceFileTransport(nil), nil
		},
	}
)

// Register makes a transport constructor available to NewTransport under kind.
// Registering the same kind twice replaces the earlier constructor.
func Register(kind string, factory func() (Transport, error)) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(kind)] = factory
}

// Kinds returns the registered transport kinds in sorted order.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	kinds := make([]string, 0, len(registry)+1)
	kinds = append(kinds, KindAuto)
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// NewTransport returns the transport registered under kind. "auto" and ""
// select the platform default.
func NewTransport(kind string) (Transport, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" || kind == KindAuto {
		return DefaultTransport()
	}

	registryMu.RLock()
	factory, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown transport %q (known: %s)", kind, strings.Join(Kinds(), ", "))
	}
	return factory()
}

// WriteToDevice sends payload to destination with the platform default
// transport.
func WriteToDevice(destination string, payload []byte, documentName string) (int, error) {
	t, err := DefaultTransport()
	if err != nil {
		return 0, err
	}
	return t.WriteRaw(destination, payload, documentName)
}

func documentNameOrDefault(name string) string {
	if name == "" {
		return DefaultDocumentName
	}
	return name
}

func validDestination(destination string) bool {
	return destination != "" && !strings.ContainsRune(destination, 0)
}

func checkPayloadSize(op, destination string, payload []byte, limit uint64) error {
	if uint64(len(payload)) > limit {
		return newError(ErrWriteFailed, op, destination,
			fmt.Errorf("payload of %d bytes exceeds %d", len(payload), limit))
	}
	return nil
}
