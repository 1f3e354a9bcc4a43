package spd

import "math"

// Timing is a decoded JEDEC time value in nanoseconds, computed by one
// of two historical strategies (Fractional or Timebase) depending on
// the owning Image's RamType; both resolve to the same Ns field so
// downstream consumers never need to know which strategy produced it.
type Timing struct {
	Ns float64
}

// tenthExtension covers SPD's extended tenths-digit codes 10..13, used
// by the fractional (SDRAM/DDR/DDR2) timing encoding for values that
// don't land on a clean tenth.
var tenthExtension = map[int]float64{
	10: 0.25,
	11: 0.33,
	12: 0.66,
	13: 0.75,
}

// sixthsFraction is the fraction table used for the quarter/sixths-like
// digit on tRC/tRFC-style fields in the fractional encoding.
var sixthsFraction = map[int]float64{
	0: 0,
	1: 0.25,
	2: 0.33,
	3: 0.5,
	4: 0.66,
	5: 0.75,
}

// FractionalTiming builds a Timing from the legacy whole/tenths pair the
// way SDRAM/DDR/DDR2 SPDs encode cycle-time-derived fields: whole
// nanoseconds plus a tenths digit, where codes 10-13 select the
// extension table instead of n/10.
func FractionalTiming(whole, tenths int) Timing {
	var frac float64
	if ext, ok := tenthExtension[tenths]; ok {
		frac = ext
	} else {
		frac = float64(tenths) / 10
	}
	return Timing{Ns: float64(whole) + frac}
}

// FractionalTimingSixths builds a Timing using the sixths-like fraction
// table (for tRC/tRFC-style fields that pack the fraction in a
// dedicated 3-bit code rather than a decimal tenths digit).
func FractionalTimingSixths(whole, sixthsCode int) Timing {
	return Timing{Ns: float64(whole) + sixthsFraction[sixthsCode]}
}

// TimebaseTiming builds a Timing from DDR3/DDR4/DDR5's medium/fine
// timebase pair: ns = (medium*mtbPs + fine*ftbPs) / 1000. fine is
// signed (a negative fine offset refines a medium value downward).
func TimebaseTiming(medium int, fine int, mtbPs, ftbPs float64) Timing {
	ps := float64(medium)*mtbPs + float64(fine)*ftbPs
	return Timing{Ns: ps / 1000}
}

// DirectTiming wraps a DDR5-style value that is already in nanoseconds
// or picoseconds (caller divides as needed before calling).
func DirectTiming(ns float64) Timing {
	return Timing{Ns: ns}
}

// ToClockCycles converts t into a whole number of ref's clock cycles,
// rounding up: ceil(t.Ns / ref.Ns).
func (t Timing) ToClockCycles(ref Timing) int {
	if ref.Ns == 0 {
		return 0
	}
	return int(math.Ceil(t.Ns / ref.Ns))
}

// FrequencyMHz returns 1000/t.Ns, the clock frequency a cycle time of t
// implies; 0 if t.Ns is 0.
func (t Timing) FrequencyMHz() float64 {
	if t.Ns == 0 {
		return 0
	}
	return 1000 / t.Ns
}
