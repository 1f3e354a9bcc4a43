package spd

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/mscrnt/spdtool/internal/bitutil"
)

// commonOffsets locates the fields every variant exposes identically in
// shape (though not in position): manufacturer ID, manufacturing date,
// serial number, and part number.
type commonOffsets struct {
	mfgIDLsb, mfgIDMsb int
	mfgYear, mfgWeek   int
	serial             int // 4 bytes
	partNumber         int
	partNumberLen      int
}

func (img *Image) offsets() commonOffsets {
	switch img.Type {
	case RamSDRAM, RamDDR, RamDDR2:
		return commonOffsets{
			mfgIDLsb: 64, mfgIDMsb: 65,
			mfgYear: 93, mfgWeek: 94,
			serial: 95, partNumber: 73, partNumberLen: 18,
		}
	case RamDDR3:
		return commonOffsets{
			mfgIDLsb: 117, mfgIDMsb: 118,
			mfgYear: 120, mfgWeek: 121,
			serial: 122, partNumber: 128, partNumberLen: 18,
		}
	case RamDDR4:
		return commonOffsets{
			mfgIDLsb: 320, mfgIDMsb: 321,
			mfgYear: 323, mfgWeek: 324,
			serial: 325, partNumber: 329, partNumberLen: 20,
		}
	case RamDDR5:
		return commonOffsets{
			mfgIDLsb: 512, mfgIDMsb: 513,
			mfgYear: 515, mfgWeek: 516,
			serial: 517, partNumber: 521, partNumberLen: 30,
		}
	default:
		return commonOffsets{}
	}
}

// ManufacturerIDCode returns the raw (lsb, msb) JEDEC bank/ID pair.
func (img *Image) ManufacturerIDCode() (lsb, msb byte) {
	o := img.offsets()
	return img.Bytes[o.mfgIDLsb], img.Bytes[o.mfgIDMsb]
}

// Manufacturer resolves ManufacturerIDCode to a human name.
func (img *Image) Manufacturer() string {
	lsb, msb := img.ManufacturerIDCode()
	return bitutil.ManufacturerIDBytes(lsb, msb)
}

// ManufacturingDate returns (year, week) as decoded from BCD-style
// two-digit fields; (0, 0) if either byte is zero (undated).
func (img *Image) ManufacturingDate() (year, week int) {
	o := img.offsets()
	y, w := img.Bytes[o.mfgYear], img.Bytes[o.mfgWeek]
	if y == 0 || w == 0 {
		return 0, 0
	}
	return int(y>>4)*10 + int(y&0x0F), int(w>>4)*10 + int(w&0x0F)
}

// SerialNumber returns the 4 raw serial bytes.
func (img *Image) SerialNumber() [4]byte {
	o := img.offsets()
	var s [4]byte
	copy(s[:], img.Bytes[o.serial:o.serial+4])
	return s
}

// SerialNumberHex formats SerialNumber as an 8-hex-digit, big-endian
// string.
func (img *Image) SerialNumberHex() string {
	s := img.SerialNumber()
	return fmt.Sprintf("%08X", binary.BigEndian.Uint32(s[:]))
}

// PartNumber returns the ASCII part-number field, trimmed of padding.
func (img *Image) PartNumber() string {
	o := img.offsets()
	end := o.partNumber + o.partNumberLen
	if end > len(img.Bytes) {
		end = len(img.Bytes)
	}
	return strings.TrimRight(strings.TrimSpace(string(img.Bytes[o.partNumber:end])), "\x00")
}

// ToString renders "{manufacturer} {partnumber}".
func (img *Image) ToString() string {
	return strings.TrimSpace(img.Manufacturer() + " " + img.PartNumber())
}
