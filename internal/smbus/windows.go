//go:build windows

package smbus

import (
	"fmt"
	"unsafe"

	"github.com/yusufpapurcu/wmi"
	"golang.org/x/sys/windows"

	"github.com/mscrnt/spdtool/internal/spdcore"
)

// win32PhysicalMemory mirrors the subset of the Win32_PhysicalMemory WMI
// class this package needs; it is only used to sanity-check Enumerate's
// result, not to substitute for an actual SMBus byte read - WMI has no
// opcode for that.
type win32PhysicalMemory struct {
	BankLabel string
	Capacity  uint64
}

// windowsAdapter drives a vendor SMBus access DLL (RWEverything-style:
// GetSMBusAdapterCount / ReadSPDByte / WriteSPDByte) through
// golang.org/x/sys/windows LazyDLL procedure calls, since Windows has no
// standard in-kernel SMBus device node a Go program can open directly.
type windowsAdapter struct {
	dll             *windows.LazyDLL
	getAdapterCount *windows.LazyProc
	readByteProc    *windows.LazyProc
	writeByteProc   *windows.LazyProc
}

// DriverDLLName is the vendor DLL this backend loads; callers running on
// a system without the DLL installed get ErrUnsupported from every
// method that calls into it.
const DriverDLLName = "EWD.dll"

// NewWindowsAdapter lazily loads DriverDLLName; load failures are
// deferred to the first method call rather than returned here, matching
// the rest of this package's Adapter construction pattern.
func NewWindowsAdapter() Adapter {
	dll := windows.NewLazyDLL(DriverDLLName)
	return &windowsAdapter{
		dll:             dll,
		getAdapterCount: dll.NewProc("GetSMBusAdapterCount"),
		readByteProc:    dll.NewProc("ReadSPDByte"),
		writeByteProc:   dll.NewProc("WriteSPDByte"),
	}
}

func (a *windowsAdapter) loaded() error {
	if err := a.dll.Load(); err != nil {
		return fmt.Errorf("smbus: load %s: %w: %w", DriverDLLName, spdcore.ErrUnsupported, err)
	}
	return nil
}

// Enumerate asks the driver DLL for its adapter count, then cross-checks
// it against WMI-reported populated DIMM slots: a host reporting zero
// populated slots has nothing for an SMBus scan to find either, so an
// adapter is only reported when both signals agree hardware is present.
func (a *windowsAdapter) Enumerate() ([]int, error) {
	if err := a.loaded(); err != nil {
		return nil, err
	}
	var count uint8
	ret, _, callErr := a.getAdapterCount.Call(uintptr(unsafe.Pointer(&count)))
	if ret == 0 {
		return nil, fmt.Errorf("smbus: get adapter count: %w", callErr)
	}

	var slots []win32PhysicalMemory
	if err := wmi.Query("SELECT BankLabel, Capacity FROM Win32_PhysicalMemory", &slots); err != nil {
		return nil, fmt.Errorf("smbus: wmi query: %w", err)
	}
	populated := 0
	for _, s := range slots {
		if s.Capacity > 0 {
			populated++
		}
	}
	if populated == 0 {
		return nil, nil
	}

	indices := make([]int, count)
	for i := range indices {
		indices[i] = i
	}
	return indices, nil
}

func (a *windowsAdapter) MaxSpdSize(int) int { return 256 }

func (a *windowsAdapter) ScanBus(adapter int) (byte, error) {
	if err := a.loaded(); err != nil {
		return 0, err
	}
	var bitmap byte
	for i := byte(0); i < 8; i++ {
		if _, err := a.ReadByte(adapter, 0x50+i, 0); err == nil {
			bitmap |= 1 << i
		}
	}
	return bitmap, nil
}

func (a *windowsAdapter) ReadByte(adapter int, addr byte, offset uint16) (byte, error) {
	if err := a.loaded(); err != nil {
		return 0, err
	}
	var value byte
	ret, _, callErr := a.readByteProc.Call(
		uintptr(adapter),
		uintptr(addr),
		uintptr(offset),
		uintptr(unsafe.Pointer(&value)),
	)
	if ret == 0 {
		return 0, fmt.Errorf("%w: %w", spdcore.ErrNack, callErr)
	}
	return value, nil
}

func (a *windowsAdapter) WriteByte(adapter int, addr byte, offset uint16, value byte) error {
	if err := a.loaded(); err != nil {
		return err
	}
	ret, _, callErr := a.writeByteProc.Call(
		uintptr(adapter),
		uintptr(addr),
		uintptr(offset),
		uintptr(value),
	)
	if ret == 0 {
		return fmt.Errorf("%w: %w", spdcore.ErrNack, callErr)
	}
	return nil
}

func (a *windowsAdapter) Close() error { return nil }
