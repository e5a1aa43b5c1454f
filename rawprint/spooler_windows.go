//go:build windows

package rawprint

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

const printerAccessUse = 0x00000008

var errWinspool = errors.New("winspool call failed")

var (
	modwinspool = windows.NewLazySystemDLL("winspool.drv")

	procOpenPrinterW     = modwinspool.NewProc("OpenPrinterW")
	procClosePrinter     = modwinspool.NewProc("ClosePrinter")
	procStartDocPrinterW = modwinspool.NewProc("StartDocPrinterW")
	procEndDocPrinter    = modwinspool.NewProc("EndDocPrinter")
	procStartPagePrinter = modwinspool.NewProc("StartPagePrinter")
	procEndPagePrinter   = modwinspool.NewProc("EndPagePrinter")
	procWritePrinter     = modwinspool.NewProc("WritePrinter")
)

type printerDefaults struct {
	datatype      *uint16
	devMode       uintptr
	desiredAccess uint32
}

type docInfo1 struct {
	docName    *uint16
	outputFile *uint16
	datatype   *uint16
}

// winspool calls the Windows print spooler in winspool.drv.
type winspool struct{}

// NewSystemSpooler returns the Windows print spooler binding.
func NewSystemSpooler() (Spooler, error) {
	if err := modwinspool.Load(); err != nil {
		return nil, fmt.Errorf("load winspool.drv: %w", err)
	}
	return winspool{}, nil
}

// DefaultTransport returns a SpoolerTransport over the system spooler.
func DefaultTransport() (Transport, error) {
	sp, err := NewSystemSpooler()
	if err != nil {
		return nil, err
	}
	return NewSpoolerTransport(sp), nil
}

func (winspool) Open(printer string) (Handle, error) {
	name, err := windows.UTF16PtrFromString(printer)
	if err != nil {
		return 0, err
	}
	defaults := printerDefaults{desiredAccess: printerAccessUse}

	var h windows.Handle
	r, _, e := procOpenPrinterW.Call(
		uintptr(unsafe.Pointer(name)),
		uintptr(unsafe.Pointer(&h)),
		uintptr(unsafe.Pointer(&defaults)))
	if r == 0 {
		return 0, callErr(e)
	}
	return Handle(h), nil
}

func (winspool) StartDoc(h Handle, documentName, datatype string) (uint32, error) {
	docName, err := windows.UTF16PtrFromString(documentName)
	if err != nil {
		return 0, err
	}
	dt, err := windows.UTF16PtrFromString(datatype)
	if err != nil {
		return 0, err
	}
	info := docInfo1{docName: docName, datatype: dt}

	r, _, e := procStartDocPrinterW.Call(uintptr(h), 1, uintptr(unsafe.Pointer(&info)))
	if r == 0 {
		return 0, callErr(e)
	}
	return uint32(r), nil
}

func (winspool) StartPage(h Handle) error {
	return boolCall(procStartPagePrinter, uintptr(h))
}

func (winspool) Write(h Handle, p []byte) (uint32, error) {
	var written uint32
	var buf unsafe.Pointer
	if len(p) > 0 {
		buf = unsafe.Pointer(&p[0])
	}
	r, _, e := procWritePrinter.Call(
		uintptr(h),
		uintptr(buf),
		uintptr(uint32(len(p))),
		uintptr(unsafe.Pointer(&written)))
	if r == 0 {
		return 0, callErr(e)
	}
	return written, nil
}

func (winspool) EndPage(h Handle) error {
	return boolCall(procEndPagePrinter, uintptr(h))
}

func (winspool) EndDoc(h Handle) error {
	return boolCall(procEndDocPrinter, uintptr(h))
}

func (winspool) Close(h Handle) error {
	return boolCall(procClosePrinter, uintptr(h))
}

func boolCall(proc *windows.LazyProc, args ...uintptr) error {
	r, _, e := proc.Call(args...)
	if r == 0 {
		return callErr(e)
	}
	return nil
}

// callErr normalises the error returned by LazyProc.Call, which is never nil.
func callErr(e error) error {
	if errno, ok := e.(windows.Errno); ok && errno == 0 {
		return errWinspool
	}
	return e
}
