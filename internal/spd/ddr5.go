package spd

import "encoding/binary"

// DDR5 timings are direct little-endian picosecond fields, with no
// external MTB/FTB pair to resolve against.
const (
	ddr5TckAvgMinPs = 20
	ddr5TaaMinPs    = 30
	ddr5TrcdMinPs   = 32
	ddr5TrpMinPs    = 34
	ddr5TrasMinPs   = 36
	ddr5TrcMinPs    = 38
	ddr5Trfc1MinPs  = 40
	ddr5Trfc2MinPs  = 42
	ddr5TfawMinPs   = 44

	xmp3Offset = 0x280
	expoOffset = 0x340
)

func (img *Image) ddr5DirectTiming(offset int) Timing {
	ps := binary.LittleEndian.Uint16(img.Bytes[offset : offset+2])
	return DirectTiming(float64(ps) / 1000)
}

func (img *Image) Ddr5CycleTimeMin() Timing { return img.ddr5DirectTiming(ddr5TckAvgMinPs) }
func (img *Image) Ddr5TaaMin() Timing       { return img.ddr5DirectTiming(ddr5TaaMinPs) }
func (img *Image) Ddr5TrcdMin() Timing      { return img.ddr5DirectTiming(ddr5TrcdMinPs) }
func (img *Image) Ddr5TrpMin() Timing       { return img.ddr5DirectTiming(ddr5TrpMinPs) }
func (img *Image) Ddr5TrasMin() Timing      { return img.ddr5DirectTiming(ddr5TrasMinPs) }
func (img *Image) Ddr5TrcMin() Timing       { return img.ddr5DirectTiming(ddr5TrcMinPs) }
func (img *Image) Ddr5Trfc1Min() Timing     { return img.ddr5DirectTiming(ddr5Trfc1MinPs) }
func (img *Image) Ddr5Trfc2Min() Timing     { return img.ddr5DirectTiming(ddr5Trfc2MinPs) }
func (img *Image) Ddr5TfawMin() Timing      { return img.ddr5DirectTiming(ddr5TfawMinPs) }

// hasXMP3 reports whether a DDR5 image carries an XMP 3.0 block, gated
// by the magic byte pair 0x0C 0x4A at offset 0x280.
func (img *Image) hasXMP3() bool {
	if img.Type != RamDDR5 || len(img.Bytes) < xmp3Offset+2 {
		return false
	}
	return img.Bytes[xmp3Offset] == 0x0C && img.Bytes[xmp3Offset+1] == 0x4A
}

// hasEXPO reports whether a DDR5 image carries an AMD EXPO block,
// gated by a magic pair at offset 0x340.
func (img *Image) hasEXPO() bool {
	if img.Type != RamDDR5 || len(img.Bytes) < expoOffset+2 {
		return false
	}
	return img.Bytes[expoOffset] == 0x45 && img.Bytes[expoOffset+1] == 0x58 // "EX"
}
