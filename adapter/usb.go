package adapter

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/google/gousb"
)

// IfaceClassPrinter is the USB printer interface class code
// Reference: http://www.usb.org/developers/defined_class
const IfaceClassPrinter = 0x07

// Destination prefixes understood by ParseUSBDestination
const (
	SerialPrefix = "serial:"
	AnyPrinter   = "auto"
)

// USBTarget identifies a USB printer by VID/PID, by serial number, or as the
// first printer-class device found.
type USBTarget struct {
	Vendor  gousb.ID
	Product gousb.ID
	Serial  string
	Any     bool
}

// ParseUSBDestination parses "VID:PID" (hex), "serial:<number>" or "auto".
func ParseUSBDestination(destination string) (USBTarget, error) {
	d := strings.TrimSpace(destination)
	switch {
	case d == "":
		return USBTarget{}, errors.New("empty usb destination")
	case strings.EqualFold(d, AnyPrinter):
		return USBTarget{Any: true}, nil
	case strings.HasPrefix(strings.ToLower(d), SerialPrefix):
		serial := d[len(SerialPrefix):]
		if serial == "" {
			return USBTarget{}, errors.New("empty serial number")
		}
		return USBTarget{Serial: serial}, nil
	}

	vidStr, pidStr, ok := strings.Cut(d, ":")
	if !ok {
		return USBTarget{}, fmt.Errorf("invalid usb destination %q: want VID:PID, serial:<sn> or auto", destination)
	}
	vid, err := parseID(vidStr)
	if err != nil {
		return USBTarget{}, fmt.Errorf("invalid vendor id %q: %w", vidStr, err)
	}
	pid, err := parseID(pidStr)
	if err != nil {
		return USBTarget{}, fmt.Errorf("invalid product id %q: %w", pidStr, err)
	}
	return USBTarget{Vendor: vid, Product: pid}, nil
}

func parseID(s string) (gousb.ID, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, err
	}
	return gousb.ID(v), nil
}

func (t USBTarget) String() string {
	switch {
	case t.Any:
		return AnyPrinter
	case t.Serial != "":
		return SerialPrefix + t.Serial
	default:
		return fmt.Sprintf("%s:%s", t.Vendor, t.Product)
	}
}

// USBAdapter manages one USB printer connection
type USBAdapter struct {
	ctx         *gousb.Context
	device      *gousb.Device
	config      *gousb.Config
	iface       *gousb.Interface
	outEndpoint *gousb.OutEndpoint
	isOpen      bool
	mu          sync.Mutex
}

// OpenUSB is an Opener that locates the USB printer named by destination.
// The returned adapter owns its gousb context and must be closed.
func OpenUSB(destination string) (Adapter, error) {
	target, err := ParseUSBDestination(destination)
	if err != nil {
		return nil, err
	}
	a, err := NewUSBAdapter(target)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// NewUSBAdapter creates an adapter for the printer matching target
func NewUSBAdapter(target USBTarget) (*USBAdapter, error) {
	ctx := gousb.NewContext()

	var (
		device *gousb.Device
		err    error
	)
	switch {
	case target.Any:
		devices := FindPrinters(ctx)
		if len(devices) == 0 {
			err = errors.New("cannot find printer")
			break
		}
		device = devices[0]
		for _, d := range devices[1:] {
			d.Close()
		}
	case target.Serial != "":
		device, err = GetDeviceBySerial(ctx, target.Serial)
	default:
		device, err = GetDeviceByVIDPID(ctx, target.Vendor, target.Product)
	}
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("usb printer %s: %w", target, err)
	}

	return &USBAdapter{ctx: ctx, device: device}, nil
}

// IsPrinter checks if a device exposes a printer-class interface
func IsPrinter(dev *gousb.Device) bool {
	if dev == nil {
		return false
	}
	_, _, err := printerInterface(dev)
	return err == nil
}

// printerInterface returns the active config number and the number of the
// first printer-class interface.
func printerInterface(dev *gousb.Device) (cfgNum, ifaceNum int, err error) {
	cfgNum, err = dev.ActiveConfigNum()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get active config: %w", err)
	}

	cfgDesc, ok := dev.Desc.Configs[cfgNum]
	if !ok {
		return 0, 0, fmt.Errorf("config %d not described", cfgNum)
	}

	for _, iface := range cfgDesc.Interfaces {
		for _, alt := range iface.AltSettings {
			if alt.Class == IfaceClassPrinter {
				return cfgNum, iface.Number, nil
			}
		}
	}
	return 0, 0, errors.New("no printer interface found")
}

// FindPrinters returns all USB printer devices; other devices are closed
func FindPrinters(ctx *gousb.Context) []*gousb.Device {
	printers := []*gousb.Device{}

	devices, _ := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return true
	})

	for _, dev := range devices {
		if IsPrinter(dev) {
			printers = append(printers, dev)
		} else {
			dev.Close()
		}
	}

	return printers
}

// GetDeviceByVIDPID opens a device by VID and PID
func GetDeviceByVIDPID(ctx *gousb.Context, vid, pid gousb.ID) (*gousb.Device, error) {
	device, err := ctx.OpenDeviceWithVIDPID(vid, pid)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, errors.New("device not found")
	}
	return device, nil
}

// GetDeviceBySerial opens a device by serial number
func GetDeviceBySerial(ctx *gousb.Context, serial string) (*gousb.Device, error) {
	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return true
	})
	if err != nil && len(devices) == 0 {
		return nil, err
	}

	var found *gousb.Device
	for _, dev := range devices {
		if found == nil {
			if s, err := dev.SerialNumber(); err == nil && s == serial {
				found = dev
				continue
			}
		}
		dev.Close()
	}

	if found == nil {
		return nil, errors.New("device with serial number not found")
	}
	return found, nil
}

// Open claims the printer interface and its bulk OUT endpoint
func (a *USBAdapter) Open() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.isOpen {
		return errors.New("device already open")
	}

	if a.device == nil {
		return errors.New("device not found")
	}

	// Let libusb detach the usblp kernel driver on Linux
	if runtime.GOOS == "linux" {
		a.device.SetAutoDetach(true)
	}

	cfgNum, ifaceNum, err := printerInterface(a.device)
	if err != nil {
		return err
	}

	cfg, err := a.device.Config(cfgNum)
	if err != nil {
		return fmt.Errorf("failed to get config: %w", err)
	}

	iface, err := cfg.Interface(ifaceNum, 0)
	if err != nil {
		cfg.Close()
		return fmt.Errorf("failed to claim interface: %w", err)
	}

	var out *gousb.OutEndpoint
	for _, epDesc := range iface.Setting.Endpoints {
		if epDesc.Direction == gousb.EndpointDirectionOut {
			if ep, err := iface.OutEndpoint(epDesc.Number); err == nil {
				out = ep
				break
			}
		}
	}

	if out == nil {
		iface.Close()
		cfg.Close()
		return errors.New("cannot find output endpoint from printer")
	}

	a.config = cfg
	a.iface = iface
	a.outEndpoint = out
	a.isOpen = true

	return nil
}

// Write sends data to the printer
func (a *USBAdapter) Write(data []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isOpen {
		return 0, errors.New("device not open")
	}

	n, err := a.outEndpoint.Write(data)
	if err != nil {
		return n, fmt.Errorf("write failed: %w", err)
	}

	return n, nil
}

// Close releases the interface, device and context. It is safe to call on
// an adapter that was never opened.
func (a *USBAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error

	if a.iface != nil {
		a.iface.Close()
		a.iface = nil
	}

	if a.config != nil {
		if err := a.config.Close(); err != nil {
			errs = append(errs, err)
		}
		a.config = nil
	}

	if a.device != nil {
		if err := a.device.Close(); err != nil {
			errs = append(errs, err)
		}
		a.device = nil
	}

	if a.ctx != nil {
		if err := a.ctx.Close(); err != nil {
			errs = append(errs, err)
		}
		a.ctx = nil
	}

	a.outEndpoint = nil
	a.isOpen = false

	return errors.Join(errs...)
}

// IsOpen returns whether the device is open
func (a *USBAdapter) IsOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.isOpen
}
