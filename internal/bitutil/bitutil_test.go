package bitutil

import "testing"

func TestSubByte(t *testing.T) {
	// 0b1011_0110, bits [7:4] = 0b1011 = 0xB
	if got := SubByte(0xB6, 7, 4); got != 0x0B {
		t.Errorf("SubByte(0xB6,7,4) = 0x%02X, want 0x0B", got)
	}
	// bits [3:0] = 0b0110 = 0x6
	if got := SubByte(0xB6, 3, 4); got != 0x06 {
		t.Errorf("SubByte(0xB6,3,4) = 0x%02X, want 0x06", got)
	}
	// malformed requests return 0
	if got := SubByte(0xFF, 3, 0); got != 0 {
		t.Errorf("SubByte with length 0 = 0x%02X, want 0", got)
	}
	if got := SubByte(0xFF, 1, 4); got != 0 {
		t.Errorf("SubByte with msb < length-1 = 0x%02X, want 0", got)
	}
}

func TestGetBitSetBit(t *testing.T) {
	if !GetBit(0x01, 0) {
		t.Error("bit 0 of 0x01 should be set")
	}
	if GetBit(0x01, 1) {
		t.Error("bit 1 of 0x01 should not be set")
	}
	v := SetBit(0x00, 3, true)
	if v != 0x08 {
		t.Errorf("SetBit(0,3,true) = 0x%02X, want 0x08", v)
	}
	v = SetBit(0xFF, 3, false)
	if v != 0xF7 {
		t.Errorf("SetBit(0xFF,3,false) = 0x%02X, want 0xF7", v)
	}
}

func TestCrc8Empty(t *testing.T) {
	if got := Crc8(nil); got != 0 {
		t.Errorf("Crc8(nil) = 0x%02X, want 0", got)
	}
}

func TestCrc8KnownVector(t *testing.T) {
	// Single byte 0x00 over JEDEC CRC8 (poly 0x31, init 0) is 0.
	if got := Crc8([]byte{0x00}); got != 0x00 {
		t.Errorf("Crc8([0x00]) = 0x%02X, want 0x00", got)
	}
	// Non-trivial input must not collapse to the initial value.
	if got := Crc8([]byte{0x23, 0x10, 0x0C}); got == 0 {
		t.Errorf("Crc8 of non-zero input unexpectedly 0")
	}
}

func TestCrc16XmodemEmpty(t *testing.T) {
	if got := Crc16Xmodem(nil); got != 0 {
		t.Errorf("Crc16Xmodem(nil) = 0x%04X, want 0", got)
	}
}

func TestCrc16XmodemTrailingZerosDiffer(t *testing.T) {
	base := Crc16Xmodem([]byte{0x01, 0x02, 0x03})
	withZero := Crc16Xmodem([]byte{0x01, 0x02, 0x03, 0x00})
	if base == withZero {
		t.Error("appending a trailing zero byte must change a non-zero CRC state")
	}
}

func TestManufacturerIDKnown(t *testing.T) {
	if got := ManufacturerID(0, 0x2C); got != "Micron" {
		t.Errorf("ManufacturerID(0,0x2C) = %q, want Micron", got)
	}
}

func TestManufacturerIDUnknownRoundTrips(t *testing.T) {
	got := ManufacturerID(5, 0x55)
	want := "Unknown (6, 0x55)"
	if got != want {
		t.Errorf("ManufacturerID(5,0x55) = %q, want %q", got, want)
	}
}

func TestManufacturerIDBytesMasksParity(t *testing.T) {
	// LSB 0x2C with parity bit set, MSB 0x00 (bank 1).
	if got := ManufacturerIDBytes(0xAC, 0x00); got != "Micron" {
		t.Errorf("ManufacturerIDBytes(0xAC,0x00) = %q, want Micron", got)
	}
}
