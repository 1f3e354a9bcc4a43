//go:build linux

package smbus

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/mscrnt/spdtool/internal/spdcore"
)

// Linux ioctl numbers from linux/i2c-dev.h / linux/i2c.h, grounded on the
// same constants the ampli-pi I2C driver uses for its I2C_RDWR path; we
// additionally need I2C_SMBUS for single-byte SMBus transactions, which
// is how the platform SMBus host controller actually talks to SPD
// EEPROMs (as opposed to a raw I2C_RDWR bulk transfer).
const (
	i2cSlave = 0x0703
	i2cSmbus = 0x0720

	smbusRead  = 1
	smbusWrite = 0

	smbusByteData = 2 // I2C_SMBUS_BYTE_DATA transaction size
)

// i2cSmbusIoctlData mirrors struct i2c_smbus_ioctl_data.
type i2cSmbusIoctlData struct {
	readWrite byte
	command   byte
	size      uint32
	data      uintptr // *i2cSmbusData
}

// i2cSmbusData mirrors the relevant prefix of union i2c_smbus_data: a
// byte/word value is the first two bytes of a 32-byte union in the
// kernel header; only the byte is meaningful for I2C_SMBUS_BYTE_DATA.
type i2cSmbusData struct {
	b   byte
	pad [31]byte
}

// linuxAdapter talks to SPD EEPROMs over /dev/i2c-N via the SMBus ioctl,
// the standard Linux path a platform's SMBus/SPD-hub host controller is
// exposed through.
type linuxAdapter struct {
	fds map[int]int // adapter index -> open fd
}

// NewLinuxAdapter opens no devices up front; Enumerate/ReadByte/WriteByte
// open /dev/i2c-N lazily per adapter index.
func NewLinuxAdapter() Adapter {
	return &linuxAdapter{fds: make(map[int]int)}
}

// Enumerate lists the numeric suffixes of every /dev/i2c-N device node.
func (a *linuxAdapter) Enumerate() ([]int, error) {
	entries, err := filepath.Glob("/dev/i2c-*")
	if err != nil {
		return nil, fmt.Errorf("smbus: enumerate: %w", err)
	}
	var indices []int
	for _, e := range entries {
		n, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(e), "i2c-"))
		if err != nil {
			continue
		}
		indices = append(indices, n)
	}
	sort.Ints(indices)
	return indices, nil
}

// MaxSpdSize assumes a DDR3-and-below SMBus host controller, the common
// case; a platform able to address DDR4/DDR5's extended space would need
// a richer driver than plain SMBus byte transactions, which this backend
// deliberately stays within.
func (a *linuxAdapter) MaxSpdSize(int) int { return 256 }

func (a *linuxAdapter) fd(adapter int) (int, error) {
	if fd, ok := a.fds[adapter]; ok {
		return fd, nil
	}
	path := fmt.Sprintf("/dev/i2c-%d", adapter)
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return 0, fmt.Errorf("smbus: open %s: %w", path, err)
	}
	a.fds[adapter] = fd
	return fd, nil
}

func (a *linuxAdapter) selectSlave(fd int, addr byte) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), i2cSlave, uintptr(addr)); errno != 0 {
		return fmt.Errorf("smbus: select slave 0x%02X: %w", addr, errno)
	}
	return nil
}

func (a *linuxAdapter) smbusByte(fd int, readWrite byte, command byte, value byte) (byte, error) {
	data := i2cSmbusData{b: value}
	req := i2cSmbusIoctlData{
		readWrite: readWrite,
		command:   command,
		size:      smbusByteData,
		data:      uintptr(unsafe.Pointer(&data)),
	}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), i2cSmbus, uintptr(unsafe.Pointer(&req))); errno != 0 {
		return 0, fmt.Errorf("%w: %w", spdcore.ErrNack, errno)
	}
	return data.b, nil
}

func (a *linuxAdapter) ScanBus(adapter int) (byte, error) {
	fd, err := a.fd(adapter)
	if err != nil {
		return 0, err
	}
	var bitmap byte
	for i := byte(0); i < 8; i++ {
		addr := byte(0x50) + i
		if err := a.selectSlave(fd, addr); err != nil {
			continue
		}
		if _, err := a.smbusByte(fd, smbusRead, 0, 0); err == nil {
			bitmap |= 1 << i
		}
	}
	return bitmap, nil
}

func (a *linuxAdapter) ReadByte(adapter int, addr byte, offset uint16) (byte, error) {
	if offset >= uint16(a.MaxSpdSize(adapter)) {
		return 0, fmt.Errorf("smbus: read offset %d: %w", offset, spdcore.ErrUnsupported)
	}
	fd, err := a.fd(adapter)
	if err != nil {
		return 0, err
	}
	if err := a.selectSlave(fd, addr); err != nil {
		return 0, err
	}
	return a.smbusByte(fd, smbusRead, byte(offset), 0)
}

func (a *linuxAdapter) WriteByte(adapter int, addr byte, offset uint16, value byte) error {
	if offset >= uint16(a.MaxSpdSize(adapter)) {
		return fmt.Errorf("smbus: write offset %d: %w", offset, spdcore.ErrUnsupported)
	}
	fd, err := a.fd(adapter)
	if err != nil {
		return err
	}
	if err := a.selectSlave(fd, addr); err != nil {
		return err
	}
	_, err = a.smbusByte(fd, smbusWrite, byte(offset), value)
	return err
}

func (a *linuxAdapter) Close() error {
	var firstErr error
	for _, fd := range a.fds {
		if err := unix.Close(fd); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.fds = make(map[int]int)
	return firstErr
}
