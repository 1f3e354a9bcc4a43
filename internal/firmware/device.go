package firmware

// Device is a single simulated EEPROM attached to the bus at a 7-bit
// I2C address (conventionally 0x50-0x57). Bytes holds the full flat
// image regardless of RAM type; DDR4's two-page split is a protocol
// detail the firmware's page shadow enforces on top of this same flat
// buffer, not a storage-layer split.
type Device struct {
	Bytes []byte
}

// NewDevice returns a Device backed by a zeroed buffer of size bytes.
func NewDevice(size int) *Device {
	return &Device{Bytes: make([]byte, size)}
}

func (d *Device) readByte(offset uint16) (byte, bool) {
	if int(offset) >= len(d.Bytes) {
		return 0, false
	}
	return d.Bytes[offset], true
}

func (d *Device) writeByte(offset uint16, value byte) bool {
	if int(offset) >= len(d.Bytes) {
		return false
	}
	d.Bytes[offset] = value
	return true
}
