package spd

// DDR4 uses a fixed medium/fine timebase with no per-image MTB/FTB
// fields: MTB = 125 ps, FTB = 1 ps.
const (
	ddr4MtbPs = 125
	ddr4FtbPs = 1

	ddr4CycleTimeMinMtb = 18
	ddr4CycleTimeMaxMtb = 19
	ddr4TaaMinMtb       = 24
	ddr4TrcdMinMtb      = 25
	ddr4TrpMinMtb       = 26
	ddr4TrasTrcUpper    = 27
	ddr4TrasMinLsb      = 28
	ddr4TrcMinLsb       = 29
	ddr4Trfc1MinLsb     = 30 // 2 bytes
	ddr4Trfc2MinLsb     = 32 // 2 bytes
	ddr4Trfc4MinLsb     = 34 // 2 bytes
	ddr4TfawMinMsb      = 36
	ddr4TfawMinLsb      = 37
	ddr4TrrdsMinMtb     = 38
	ddr4TrrdlMinMtb     = 39
	ddr4TccdlMinMtb     = 40
	ddr4TwrMinMtb       = 41
	ddr4TwtrSMinMtb     = 42
	ddr4TwtrLMinMtb     = 43

	ddr4FineCkMin = 125
	ddr4FineCkMax = 124
	ddr4FineTaa   = 123
	ddr4FineTrcd  = 122
	ddr4FineTrp   = 121
	ddr4FineTrc   = 120
	ddr4FineTrrdl = 119
	ddr4FineTccdl = 117

	xmpOffsetDDR4 = 384
)

func (img *Image) ddr4Timing(mtbOffset, fineOffset int) Timing {
	fine := 0
	if fineOffset != 0 {
		fine = int(int8(img.Bytes[fineOffset]))
	}
	return TimebaseTiming(int(img.Bytes[mtbOffset]), fine, ddr4MtbPs, ddr4FtbPs)
}

func (img *Image) Ddr4CycleTimeMin() Timing {
	return img.ddr4Timing(ddr4CycleTimeMinMtb, ddr4FineCkMin)
}

// Ddr4CycleTimeMax returns tCKAVGmax, the slowest supported cycle time.
func (img *Image) Ddr4CycleTimeMax() Timing {
	return img.ddr4Timing(ddr4CycleTimeMaxMtb, ddr4FineCkMax)
}

func (img *Image) Ddr4TaaMin() Timing  { return img.ddr4Timing(ddr4TaaMinMtb, ddr4FineTaa) }
func (img *Image) Ddr4TrcdMin() Timing { return img.ddr4Timing(ddr4TrcdMinMtb, ddr4FineTrcd) }
func (img *Image) Ddr4TrpMin() Timing  { return img.ddr4Timing(ddr4TrpMinMtb, ddr4FineTrp) }

func (img *Image) Ddr4TrasMin() Timing {
	upper := int(img.Bytes[ddr4TrasTrcUpper] & 0x0F)
	medium := int(img.Bytes[ddr4TrasMinLsb]) | upper<<8
	return TimebaseTiming(medium, 0, ddr4MtbPs, 0)
}

func (img *Image) Ddr4TrcMin() Timing {
	upper := int(img.Bytes[ddr4TrasTrcUpper]>>4) & 0x0F
	medium := int(img.Bytes[ddr4TrcMinLsb]) | upper<<8
	return img.ddr4TimingMedium(medium, ddr4FineTrc)
}

func (img *Image) ddr4TimingMedium(medium, fineOffset int) Timing {
	fine := int(int8(img.Bytes[fineOffset]))
	return TimebaseTiming(medium, fine, ddr4MtbPs, ddr4FtbPs)
}

func (img *Image) Ddr4Trfc1Min() Timing {
	medium := int(img.Bytes[ddr4Trfc1MinLsb]) | int(img.Bytes[ddr4Trfc1MinLsb+1])<<8
	return TimebaseTiming(medium, 0, ddr4MtbPs, 0)
}

func (img *Image) Ddr4Trfc2Min() Timing {
	medium := int(img.Bytes[ddr4Trfc2MinLsb]) | int(img.Bytes[ddr4Trfc2MinLsb+1])<<8
	return TimebaseTiming(medium, 0, ddr4MtbPs, 0)
}

func (img *Image) Ddr4Trfc4Min() Timing {
	medium := int(img.Bytes[ddr4Trfc4MinLsb]) | int(img.Bytes[ddr4Trfc4MinLsb+1])<<8
	return TimebaseTiming(medium, 0, ddr4MtbPs, 0)
}

func (img *Image) Ddr4TfawMin() Timing {
	upper := int(img.Bytes[ddr4TfawMinMsb] & 0x0F)
	medium := int(img.Bytes[ddr4TfawMinLsb]) | upper<<8
	return TimebaseTiming(medium, 0, ddr4MtbPs, 0)
}

func (img *Image) Ddr4TrrdsMin() Timing { return img.ddr4Timing(ddr4TrrdsMinMtb, 0) }
func (img *Image) Ddr4TrrdlMin() Timing { return img.ddr4Timing(ddr4TrrdlMinMtb, ddr4FineTrrdl) }
func (img *Image) Ddr4TccdlMin() Timing { return img.ddr4Timing(ddr4TccdlMinMtb, ddr4FineTccdl) }

// Ddr4TwrMin, Ddr4TwtrSMin, and Ddr4TwtrLMin have no fine-offset field in
// the byte 117-125 block; medium timebase only.
func (img *Image) Ddr4TwrMin() Timing   { return img.ddr4Timing(ddr4TwrMinMtb, 0) }
func (img *Image) Ddr4TwtrSMin() Timing { return img.ddr4Timing(ddr4TwtrSMinMtb, 0) }
func (img *Image) Ddr4TwtrLMin() Timing { return img.ddr4Timing(ddr4TwtrLMinMtb, 0) }

// hasXMP2 reports whether a DDR4 image carries an XMP 2.0 profile,
// gated by the magic byte pair 0x0C 0x4A at byte 384.
func (img *Image) hasXMP2() bool {
	if img.Type != RamDDR4 || len(img.Bytes) < xmpOffsetDDR4+2 {
		return false
	}
	return img.Bytes[xmpOffsetDDR4] == 0x0C && img.Bytes[xmpOffsetDDR4+1] == 0x4A
}
