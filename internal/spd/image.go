package spd

import "fmt"

// Image is an exact-size byte buffer tagged with its detected RamType.
// Field accessors elsewhere in this package read Bytes directly; none
// of them retain their own copy, so mutating Bytes (e.g. via FixCrc)
// is immediately visible to every accessor.
type Image struct {
	Bytes []byte
	Type  RamType
}

// Detect classifies data by its JEDEC byte-2 DRAM type code, confirms
// the expected size for that type against byte 0 (DDR3/DDR4) or byte 1
// (SDRAM/DDR/DDR2), and returns a ready Image. A length mismatch is
// ErrBadLength, never silently truncated or padded.
func Detect(data []byte) (*Image, error) {
	t, err := detectRamType(data)
	if err != nil {
		return nil, err
	}

	want := t.ExpectedSize()
	switch t {
	case RamSDRAM, RamDDR, RamDDR2:
		if got := legacySizeFromByte1(data); got != 0 {
			want = got
		}
	case RamDDR3, RamDDR4:
		if got := ddr34SizeFromByte0(data); got != 0 {
			want = got
		}
	}

	if len(data) != want {
		return nil, fmt.Errorf("spd: detect: %s image is %d bytes, want %d: %w", t, len(data), want, ErrBadLength)
	}
	return &Image{Bytes: data, Type: t}, nil
}

// New validates data against an already-known RamType, for callers
// (such as the orchestrator's read path) that already determined the
// type out of band and just need a validated Image.
func New(data []byte, t RamType) (*Image, error) {
	want := t.ExpectedSize()
	if want == 0 || len(data) != want {
		return nil, fmt.Errorf("spd: new: %s image is %d bytes, want %d: %w", t, len(data), want, ErrBadLength)
	}
	return &Image{Bytes: data, Type: t}, nil
}
