package spd

import (
	"encoding/binary"

	"github.com/mscrnt/spdtool/internal/bitutil"
)

// crcSection is one independently checksummed region: Cover is the byte
// range the checksum is computed over, Check is the 1-byte (CRC8) or
// 2-byte (CRC16) location the checksum is stored at.
type crcSection struct {
	coverStart, coverEnd int // half-open [start, end)
	checkOffset          int
	width                int // 1 = CRC8, 2 = CRC16/XMODEM
}

// crcSections reports which CRC8/CRC16 choice and coverage span this
// image's RamType uses. Legacy (SDRAM/DDR/DDR2) images always use CRC8
// over bytes 0..62 stored at byte 63.
func (img *Image) crcSections() []crcSection {
	switch img.Type {
	case RamSDRAM, RamDDR, RamDDR2:
		return []crcSection{{0, 63, 63, 1}}
	case RamDDR3:
		coverEnd := 126
		if bitutil.GetBit(img.Bytes[0], 7) { // CRC-coverage flag, bit 7 of byte 0
			coverEnd = 117
		}
		return []crcSection{{0, coverEnd, 126, 2}}
	case RamDDR4:
		sections := []crcSection{
			{0, 126, 126, 2},
			{128, 254, 254, 2},
		}
		return sections
	case RamDDR5:
		sections := []crcSection{{0, 510, 510, 2}}
		sections = append(sections, img.ocProfileCrcSections()...)
		return sections
	default:
		return nil
	}
}

func (s crcSection) compute(data []byte) uint16 {
	region := data[s.coverStart:s.coverEnd]
	if s.width == 1 {
		return uint16(bitutil.Crc8(region))
	}
	return bitutil.Crc16Xmodem(region)
}

func (s crcSection) stored(data []byte) uint16 {
	if s.width == 1 {
		return uint16(data[s.checkOffset])
	}
	return binary.LittleEndian.Uint16(data[s.checkOffset : s.checkOffset+2])
}

func (s crcSection) write(data []byte, value uint16) {
	if s.width == 1 {
		data[s.checkOffset] = byte(value)
		return
	}
	binary.LittleEndian.PutUint16(data[s.checkOffset:s.checkOffset+2], value)
}

// CrcStatus reports whether every covered section's stored checksum
// matches a freshly computed one.
func (img *Image) CrcStatus() bool {
	for _, s := range img.crcSections() {
		if s.coverEnd > len(img.Bytes) || s.checkOffset+s.width > len(img.Bytes) {
			return false
		}
		if s.compute(img.Bytes) != s.stored(img.Bytes) {
			return false
		}
	}
	return true
}

// FixCrc recomputes and overwrites every covered section's checksum
// bytes in place, leaving every other byte untouched. An image that
// already validates is left bit-identical.
func (img *Image) FixCrc() {
	for _, s := range img.crcSections() {
		if s.coverEnd > len(img.Bytes) || s.checkOffset+s.width > len(img.Bytes) {
			continue
		}
		s.write(img.Bytes, s.compute(img.Bytes))
	}
}

// ocProfileCrcSections returns the independent CRC16 sections for each
// present DDR5 OC profile block (XMP 3.0 and EXPO): each gated profile
// block carries and validates its own checksum separate from the base
// section.
func (img *Image) ocProfileCrcSections() []crcSection {
	var sections []crcSection
	if img.hasXMP3() {
		sections = append(sections, crcSection{0x280, 0x280 + 62, 0x280 + 62, 2})
	}
	if img.hasEXPO() {
		sections = append(sections, crcSection{0x340, 0x340 + 126, 0x340 + 126, 2})
	}
	return sections
}
