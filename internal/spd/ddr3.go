package spd

import "github.com/mscrnt/spdtool/internal/bitutil"

// DDR3 timebase offsets (JEDEC SPD Rev 1.x): MTB dividend/divisor at
// 10/11, FTB dividend/divisor packed into the nibbles of byte 9.
const (
	ddr3FtbNibbles = 9
	ddr3MtbDividend = 10
	ddr3MtbDivisor  = 11

	ddr3CycleTimeMtb = 12
	ddr3CasLatBytes  = 14 // 2 bytes: 14-15
	ddr3TaaMinMtb    = 16
	ddr3TwrMinMtb    = 17
	ddr3TrcdMinMtb   = 18
	ddr3TrrdMinMtb   = 19
	ddr3TrpMinMtb    = 20
	ddr3UpperNibbles = 21
	ddr3TrasMinLsb   = 22
	ddr3TrcMinLsb    = 23
	ddr3TrfcMinLsb   = 24 // 2 bytes: 24-25
	ddr3TwtrMinMtb   = 26
	ddr3TrtpMinMtb   = 27
	ddr3TfawMinMsb   = 28 // bits [3:0] of 28 are the upper nibble, byte 29 the low byte

	ddr3FineTaa  = 34
	ddr3FineCk   = 35
	ddr3FineTrcd = 36
	ddr3FineTrp  = 37
	ddr3FineTras = 0 // DDR3 Rev 1.x has no fine tRAS offset; unused
	ddr3FineTrc  = 38

	xmpOffsetDDR3 = 176
)

// mtbPs and ftbPs return DDR3's (medium, fine) timebases in picoseconds,
// read from the image rather than DDR4's fixed 125/1 constants.
func (img *Image) ddr3Timebases() (mtbPs, ftbPs float64) {
	dividend := float64(img.Bytes[ddr3MtbDividend])
	divisor := float64(img.Bytes[ddr3MtbDivisor])
	if divisor == 0 {
		divisor = 1
	}
	mtbPs = dividend / divisor * 1000

	ftbDividend := float64(bitutil.SubByte(img.Bytes[ddr3FtbNibbles], 7, 4))
	ftbDivisor := float64(bitutil.SubByte(img.Bytes[ddr3FtbNibbles], 3, 4))
	if ftbDivisor == 0 {
		ftbDivisor = 1
	}
	ftbPs = ftbDividend / ftbDivisor
	return
}

func (img *Image) ddr3Timing(mtbOffset int, fineOffset int) Timing {
	mtbPs, ftbPs := img.ddr3Timebases()
	medium := int(img.Bytes[mtbOffset])
	fine := 0
	if fineOffset != 0 {
		fine = int(int8(img.Bytes[fineOffset]))
	}
	return TimebaseTiming(medium, fine, mtbPs, ftbPs)
}

// DDR3 timing accessors, each a (medium, fine) pair resolved against
// the image's own MTB/FTB.
func (img *Image) Ddr3CycleTimeMin() Timing { return img.ddr3Timing(ddr3CycleTimeMtb, ddr3FineCk) }
func (img *Image) Ddr3TaaMin() Timing       { return img.ddr3Timing(ddr3TaaMinMtb, ddr3FineTaa) }
func (img *Image) Ddr3TrcdMin() Timing      { return img.ddr3Timing(ddr3TrcdMinMtb, ddr3FineTrcd) }
func (img *Image) Ddr3TrpMin() Timing       { return img.ddr3Timing(ddr3TrpMinMtb, ddr3FineTrp) }

func (img *Image) Ddr3TrasMin() Timing {
	upper := bitutil.SubByte(img.Bytes[ddr3UpperNibbles], 3, 4)
	medium := int(img.Bytes[ddr3TrasMinLsb]) | int(upper)<<8
	mtbPs, _ := img.ddr3Timebases()
	return TimebaseTiming(medium, 0, mtbPs, 0)
}

func (img *Image) Ddr3TrcMin() Timing {
	upper := bitutil.SubByte(img.Bytes[ddr3UpperNibbles], 7, 4)
	medium := int(img.Bytes[ddr3TrcMinLsb]) | int(upper)<<8
	mtbPs, ftbPs := img.ddr3Timebases()
	return img.timebaseWithFine(medium, ddr3FineTrc, mtbPs, ftbPs)
}

func (img *Image) timebaseWithFine(medium, fineOffset int, mtbPs, ftbPs float64) Timing {
	fine := int(int8(img.Bytes[fineOffset]))
	return TimebaseTiming(medium, fine, mtbPs, ftbPs)
}

func (img *Image) Ddr3TrfcMin() Timing {
	medium := int(img.Bytes[ddr3TrfcMinLsb]) | int(img.Bytes[ddr3TrfcMinLsb+1])<<8
	mtbPs, _ := img.ddr3Timebases()
	return TimebaseTiming(medium, 0, mtbPs, 0)
}

func (img *Image) Ddr3TwrMin() Timing {
	mtbPs, _ := img.ddr3Timebases()
	return TimebaseTiming(int(img.Bytes[ddr3TwrMinMtb]), 0, mtbPs, 0)
}

func (img *Image) Ddr3TrtpMin() Timing {
	mtbPs, _ := img.ddr3Timebases()
	return TimebaseTiming(int(img.Bytes[ddr3TrtpMinMtb]), 0, mtbPs, 0)
}

func (img *Image) Ddr3TwtrMin() Timing {
	mtbPs, _ := img.ddr3Timebases()
	return TimebaseTiming(int(img.Bytes[ddr3TwtrMinMtb]), 0, mtbPs, 0)
}

func (img *Image) Ddr3TrrdMin() Timing {
	mtbPs, _ := img.ddr3Timebases()
	return TimebaseTiming(int(img.Bytes[ddr3TrrdMinMtb]), 0, mtbPs, 0)
}

func (img *Image) Ddr3TfawMin() Timing {
	upper := bitutil.SubByte(img.Bytes[ddr3TfawMinMsb], 3, 4)
	medium := int(img.Bytes[ddr3TfawMinMsb+1]) | int(upper)<<8
	mtbPs, _ := img.ddr3Timebases()
	return TimebaseTiming(medium, 0, mtbPs, 0)
}

// hasXMP1 reports whether a DDR3 image carries an XMP 1.x profile,
// gated by the magic byte pair 0x0C 0x4A at byte 176.
func (img *Image) hasXMP1() bool {
	if img.Type != RamDDR3 || len(img.Bytes) < xmpOffsetDDR3+2 {
		return false
	}
	return img.Bytes[xmpOffsetDDR3] == 0x0C && img.Bytes[xmpOffsetDDR3+1] == 0x4A
}
