package spd

import "github.com/mscrnt/spdtool/internal/bitutil"

// Legacy field offsets (SDRAM/DDR/DDR2), matching the classic SPD
// EEPROM layout: geometry at bytes 3-7 and 17, timings at 9 and 18-42,
// voltage at 11.
const (
	legacyRows      = 3
	legacyCols      = 4
	legacyRanks     = 5 // number of physical banks (ranks) on the module
	legacyDataWidth = 6
	legacyBanksPerChip = 17
	legacyCycleTimeWhole  = 9
	legacyCycleTimeTenths = 10
	legacyCasLatencies    = 18
	legacyTrpWhole        = 27
	legacyTrcdWhole       = 29
	legacyTrasWhole       = 30
	legacyTrcWhole        = 41 // tRC, whole ns; fraction packed in legacyTrcTrfcExt
	legacyTrfcWhole       = 42 // tRFC, whole ns; fraction packed in legacyTrcTrfcExt
	legacyTrcTrfcExt      = 40 // bits [2:0] tRC sixths code, [5:3] tRFC sixths code
)

// Rows, Cols, Ranks, DataWidth, and BanksPerChip expose the raw
// geometry fields the capacity formula consumes.
func (img *Image) Rows() int        { return int(img.Bytes[legacyRows]) }
func (img *Image) Cols() int        { return int(img.Bytes[legacyCols]) }
func (img *Image) Ranks() int       { return int(img.Bytes[legacyRanks] & 0x07) }
func (img *Image) DataWidth() int   { return int(img.Bytes[legacyDataWidth]) }
func (img *Image) BanksPerChip() int { return int(img.Bytes[legacyBanksPerChip]) }

// CycleTimeMin returns tCKmin for a legacy image using the fractional
// whole/tenths encoding.
func (img *Image) CycleTimeMin() Timing {
	whole := int(img.Bytes[legacyCycleTimeWhole])
	tenths := int(img.Bytes[legacyCycleTimeTenths] >> 4) // upper nibble packs the tenths digit
	return FractionalTiming(whole, tenths)
}

// CasLatencies returns the bitmask of supported CAS latencies (bit n =
// CL n+1 supported), byte 18.
func (img *Image) CasLatencies() byte {
	return img.Bytes[legacyCasLatencies]
}

// TrpMin returns tRP, whole nanoseconds only.
func (img *Image) TrpMin() Timing {
	return FractionalTiming(int(img.Bytes[legacyTrpWhole]), 0)
}

// TrcdMin returns tRCD, whole nanoseconds only.
func (img *Image) TrcdMin() Timing {
	return FractionalTiming(int(img.Bytes[legacyTrcdWhole]), 0)
}

// TrasMin returns tRAS, whole nanoseconds only.
func (img *Image) TrasMin() Timing {
	return FractionalTiming(int(img.Bytes[legacyTrasWhole]), 0)
}

// TrcMin returns tRC using the sixths-like fraction code packed into
// legacyTrcTrfcExt bits [2:0].
func (img *Image) TrcMin() Timing {
	sixths := int(bitutil.SubByte(img.Bytes[legacyTrcTrfcExt], 2, 3))
	return FractionalTimingSixths(int(img.Bytes[legacyTrcWhole]), sixths)
}

// TrfcMin returns tRFC using the sixths-like fraction code packed into
// legacyTrcTrfcExt bits [5:3].
func (img *Image) TrfcMin() Timing {
	sixths := int(bitutil.SubByte(img.Bytes[legacyTrcTrfcExt], 5, 3))
	return FractionalTimingSixths(int(img.Bytes[legacyTrfcWhole]), sixths)
}

// hasEPP reports whether a DDR2 image carries an Enhanced Performance
// Profile, gated by the ASCII marker "NVm" at byte 99.
func (img *Image) hasEPP() bool {
	if img.Type != RamDDR2 || len(img.Bytes) < 102 {
		return false
	}
	return img.Bytes[99] == 'N' && img.Bytes[100] == 'V' && img.Bytes[101] == 'm'
}
