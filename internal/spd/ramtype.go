// Package spd decodes, validates, and repairs SPD EEPROM images across
// every DRAM generation from SDRAM through DDR5. It is organized as a
// tagged variant over RamType rather than an interface hierarchy: one
// Image type, one RamType tag, and field accessors that switch on the
// tag instead of dispatching through a vtable.
package spd

import "fmt"

// RamType identifies the DRAM generation a byte-2 JEDEC code names.
type RamType int

const (
	RamUnknown RamType = iota
	RamSDRAM
	RamDDR
	RamDDR2
	RamDDR3
	RamDDR4
	RamDDR5
)

// ramTypeByte2 maps the JEDEC "DRAM Device Type" byte (offset 2) to a
// RamType. LPDDR variants are folded into their matching DDR generation
// since they share SPD layout for every field this package decodes.
var ramTypeByte2 = map[byte]RamType{
	0x04: RamSDRAM,
	0x07: RamDDR,
	0x08: RamDDR2,
	0x0B: RamDDR3,
	0x0C: RamDDR4,
	0x0E: RamDDR4, // DDR4E
	0x10: RamDDR4, // LPDDR4
	0x11: RamDDR4, // LPDDR4X
	0x12: RamDDR5,
	0x13: RamDDR5, // LPDDR5
}

func (t RamType) String() string {
	switch t {
	case RamSDRAM:
		return "SDRAM"
	case RamDDR:
		return "DDR"
	case RamDDR2:
		return "DDR2"
	case RamDDR3:
		return "DDR3"
	case RamDDR4:
		return "DDR4"
	case RamDDR5:
		return "DDR5"
	default:
		return "Unknown"
	}
}

// ExpectedSize returns the byte length a well-formed image of this type
// must have, or 0 for RamUnknown.
func (t RamType) ExpectedSize() int {
	switch t {
	case RamSDRAM, RamDDR, RamDDR2:
		return 128
	case RamDDR3:
		return 256
	case RamDDR4:
		return 512
	case RamDDR5:
		return 1024
	default:
		return 0
	}
}

// detectRamType reads byte 2 and classifies it; byte-0-derived size
// disambiguation happens separately in Detect since legacy types don't
// need it.
func detectRamType(data []byte) (RamType, error) {
	if len(data) < 3 {
		return RamUnknown, fmt.Errorf("spd: detect: %w: need at least 3 bytes, got %d", ErrBadLength, len(data))
	}
	t, ok := ramTypeByte2[data[2]]
	if !ok {
		return RamUnknown, fmt.Errorf("spd: detect: unrecognized dram type byte 0x%02X: %w", data[2], ErrBadLength)
	}
	return t, nil
}

// legacySizeFromByte1 decodes SDRAM/DDR/DDR2's "Number of Bytes" field:
// total image size is 1<<bytes[1].
func legacySizeFromByte1(data []byte) int {
	if len(data) < 2 {
		return 0
	}
	return 1 << data[1]
}

// ddr34SizeFromByte0 decodes DDR3/DDR4's bits [6:4] of byte 0 ("total
// bytes") as n*256. (0x23 -> n=2 -> 512.)
func ddr34SizeFromByte0(data []byte) int {
	if len(data) < 1 {
		return 0
	}
	n := (data[0] >> 4) & 0x07
	if n == 0 {
		return 0
	}
	return int(n) * 256
}

// ddr34BytesUsed decodes bits [3:0] of byte 0 ("bytes used") as n*128.
func ddr34BytesUsed(data []byte) int {
	if len(data) < 1 {
		return 0
	}
	return int(data[0]&0x0F) * 128
}
