package spd

// ProfileKind names which vendor overclocking profile scheme a
// Profile was extracted from.
type ProfileKind int

const (
	ProfileXMP1 ProfileKind = iota + 1 // DDR3
	ProfileXMP2                        // DDR4
	ProfileXMP3                        // DDR5
	ProfileEPP                         // DDR2
	ProfileEXPO                        // DDR5
)

// Profile is a decoded overclocking profile: enabled state, the
// frequency and core timings it requests, and the voltage(s) it runs
// at. Fields that a given ProfileKind doesn't populate are left at
// their zero value.
type Profile struct {
	Kind      ProfileKind
	Enabled   bool
	Version   byte
	Frequency Timing // tCK the profile requests
	CL, RCD, RP, RAS, RC, RFC, RRD, FAW Timing
	VoltageMv int
	Label     string
}

// Profiles returns every overclocking profile this image's gating
// markers indicate are present; an image with no profile markers
// returns nil.
func (img *Image) Profiles() []Profile {
	var out []Profile
	switch img.Type {
	case RamDDR2:
		if img.hasEPP() {
			out = append(out, img.eppProfile())
		}
	case RamDDR3:
		if img.hasXMP1() {
			out = append(out, img.xmp1Profile())
		}
	case RamDDR4:
		if img.hasXMP2() {
			out = append(out, img.xmp2Profile())
		}
	case RamDDR5:
		if img.hasXMP3() {
			out = append(out, img.xmp3Profile())
		}
		if img.hasEXPO() {
			out = append(out, img.expoProfile())
		}
	}
	return out
}

// eppProfile reports a DDR2 Enhanced Performance Profile as present and
// enabled; no frequency, timing or voltage fields are decoded from it.
func (img *Image) eppProfile() Profile {
	return Profile{
		Kind:    ProfileEPP,
		Enabled: true,
		Label:   "EPP",
	}
}

// xmp1Profile extracts DDR3's XMP 1.x block starting at byte 176: the
// profile overrides the MTB via its own bytes 180-181 rather than
// reusing the base block's timebase; no fine offsets are applied.
func (img *Image) xmp1Profile() Profile {
	base := xmpOffsetDDR3
	enabled := img.Bytes[base+2]&0x01 != 0
	version := img.Bytes[base+3]

	mtbDividend := float64(img.Bytes[base+4])
	mtbDivisor := float64(img.Bytes[base+5])
	if mtbDivisor == 0 {
		mtbDivisor = 1
	}
	mtbPs := mtbDividend / mtbDivisor * 1000

	medium := func(off int) int { return int(img.Bytes[base+off]) }
	freq := TimebaseTiming(medium(6), 0, mtbPs, 0)
	cl := TimebaseTiming(medium(8), 0, mtbPs, 0)
	rcd := TimebaseTiming(medium(9), 0, mtbPs, 0)
	rp := TimebaseTiming(medium(10), 0, mtbPs, 0)
	ras := TimebaseTiming(medium(11), 0, mtbPs, 0)

	return Profile{
		Kind:      ProfileXMP1,
		Enabled:   enabled,
		Version:   version,
		Frequency: freq,
		CL:        cl,
		RCD:       rcd,
		RP:        rp,
		RAS:       ras,
		Label:     "XMP 1.x",
	}
}

// xmp2Profile extracts DDR4's XMP 2.0 block starting at byte 384,
// reusing the base block's fixed MTB=125ps/FTB=1ps timebase.
func (img *Image) xmp2Profile() Profile {
	base := xmpOffsetDDR4
	enabled := img.Bytes[base+2]&0x01 != 0
	version := img.Bytes[base+3]

	medium := func(off int) int { return int(img.Bytes[base+off]) }
	freq := TimebaseTiming(medium(6), 0, ddr4MtbPs, 0)
	cl := TimebaseTiming(medium(7), 0, ddr4MtbPs, 0)
	rcd := TimebaseTiming(medium(9), 0, ddr4MtbPs, 0)
	rp := TimebaseTiming(medium(11), 0, ddr4MtbPs, 0)
	ras := TimebaseTiming(medium(13), 0, ddr4MtbPs, 0)

	return Profile{
		Kind:      ProfileXMP2,
		Enabled:   enabled,
		Version:   version,
		Frequency: freq,
		CL:        cl,
		RCD:       rcd,
		RP:        rp,
		RAS:       ras,
		Label:     "XMP 2.0",
	}
}

// xmp3Profile extracts DDR5's XMP 3.0 block starting at offset 0x280;
// profile timings are direct picosecond fields matching the base
// block's DDR5 convention.
func (img *Image) xmp3Profile() Profile {
	base := xmp3Offset
	enabled := img.Bytes[base+2]&0x01 != 0
	version := img.Bytes[base+3]
	direct := func(off int) Timing { return img.ddr5DirectTiming(base + off) }

	return Profile{
		Kind:      ProfileXMP3,
		Enabled:   enabled,
		Version:   version,
		Frequency: direct(4),
		CL:        direct(6),
		RCD:       direct(8),
		RP:        direct(10),
		RAS:       direct(12),
		Label:     "XMP 3.0",
	}
}

// expoProfile extracts an AMD EXPO block at DDR5 offset 0x340.
func (img *Image) expoProfile() Profile {
	base := expoOffset
	enabled := img.Bytes[base+2]&0x01 != 0
	direct := func(off int) Timing { return img.ddr5DirectTiming(base + off) }

	return Profile{
		Kind:      ProfileEXPO,
		Enabled:   enabled,
		Frequency: direct(4),
		CL:        direct(6),
		RCD:       direct(8),
		RP:        direct(10),
		RAS:       direct(12),
		Label:     "EXPO",
	}
}
