// Package smbus implements the host-platform SMBus backend: a parallel
// implementation of the EEPROM byte operations the programmer client
// (internal/programmer) exposes, minus the firmware-only surface (pin
// control, RSWP via HV, programmer name) that has no SMBus analog.
package smbus

import "github.com/mscrnt/spdtool/internal/spdcore"

// Adapter is the capability surface internal/eeprom's orchestrator
// consumes, whichever backend (real ioctl, WMI, or a test fake) provides
// it.
type Adapter interface {
	// Enumerate lists usable adapter indices on this host.
	Enumerate() ([]int, error)
	// MaxSpdSize is the largest SPD image this platform's SMBus stack can
	// address in one module - commonly 256 (DDR3 and below); higher RAM
	// types return ErrUnsupported from ReadByte/WriteByte beyond that.
	MaxSpdSize(adapter int) int
	// ScanBus returns the same bitmap shape as the programmer protocol's
	// ScanBus: bit i set means address 0x50+i acknowledged a probe.
	ScanBus(adapter int) (byte, error)
	// ReadByte reads one byte at offset from the EEPROM at addr.
	ReadByte(adapter int, addr byte, offset uint16) (byte, error)
	// WriteByte writes one byte at offset to the EEPROM at addr.
	WriteByte(adapter int, addr byte, offset uint16, value byte) error
	// Close releases any OS resources the adapter holds open.
	Close() error
}

// Fake is an in-memory Adapter for tests and for any caller exercising
// internal/eeprom without real hardware: addr -> backing image.
type Fake struct {
	MaxSize int
	Modules map[byte][]byte // addr -> backing bytes
}

// NewFake returns a Fake with the given per-module backing images and a
// platform cap (0 defaults to 256, the common DDR3-and-below SMBus cap).
func NewFake(maxSize int, modules map[byte][]byte) *Fake {
	if maxSize == 0 {
		maxSize = 256
	}
	return &Fake{MaxSize: maxSize, Modules: modules}
}

func (f *Fake) Enumerate() ([]int, error) { return []int{0}, nil }
func (f *Fake) MaxSpdSize(int) int        { return f.MaxSize }

func (f *Fake) ScanBus(int) (byte, error) {
	var bitmap byte
	for addr := range f.Modules {
		if addr >= 0x50 && addr <= 0x57 {
			bitmap |= 1 << (addr - 0x50)
		}
	}
	return bitmap, nil
}

func (f *Fake) ReadByte(_ int, addr byte, offset uint16) (byte, error) {
	img, ok := f.Modules[addr]
	if !ok {
		return 0, spdcore.ErrNack
	}
	if int(offset) >= f.MaxSize || int(offset) >= len(img) {
		return 0, spdcore.ErrUnsupported
	}
	return img[offset], nil
}

func (f *Fake) WriteByte(_ int, addr byte, offset uint16, value byte) error {
	img, ok := f.Modules[addr]
	if !ok {
		return spdcore.ErrNack
	}
	if int(offset) >= f.MaxSize || int(offset) >= len(img) {
		return spdcore.ErrUnsupported
	}
	img[offset] = value
	return nil
}

func (f *Fake) Close() error { return nil }
