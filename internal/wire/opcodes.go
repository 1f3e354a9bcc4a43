package wire

// Opcode identifies a single-byte command sent host -> programmer. Each
// opcode has a fixed-length argument frame and a fixed-length (or
// opcode-dependent) response; there is no length prefix and no escaping,
// so both ends must agree statically on these shapes.
type Opcode byte

const (
	OpTest          Opcode = 't'
	OpVersion       Opcode = 'v'
	OpRswpReport    Opcode = 'f'
	OpRetestRswp    Opcode = 'e'
	OpScanBus       Opcode = 's'
	OpProbe         Opcode = 'a'
	OpRead          Opcode = 'r'
	OpWriteByte     Opcode = 'w'
	OpWritePage     Opcode = 'g'
	OpPinControl    Opcode = 'p'
	OpRswpControl   Opcode = 'b'
	OpPswpControl   Opcode = 'l'
	OpI2CClock      Opcode = 'c'
	OpName          Opcode = 'n'
	OpDDR4Detect    Opcode = '4'
	OpDDR5Detect    Opcode = '5'
	OpFactoryReset  Opcode = '-'
)

// Protocol-level byte values shared across opcode responses.
const (
	RespSuccess Opcode = 0x01 // SUCCESS / ENABLED / ACK
	RespError   Opcode = 0xFF // ERROR / NACK
	RespZero    Opcode = 0x00 // ZERO / DISABLED
	Welcome     Opcode = '!'  // firmware ready
	Unknown     Opcode = '?'  // malformed / unrecognized request
	QueryState  Opcode = '?'  // "get current state" suffix on a request
)

// Pin identifies a firmware-controlled GPIO pin for PinControl.
type Pin byte

const (
	PinOffline Pin = 0 // DDR5 local-bus isolation pin
	PinSA1     Pin = 1 // pre-DDR4 block-select switch
	PinHV      Pin = 2 // 9V RSWP enable gate
)

// I2C device-select codes used internally by the firmware and referenced
// by the programmer client when it needs to reason about them (e.g.
// DDR4 detection fallback).
const (
	AddrPage0Broadcast = 0x6C // SPA0 - select page 0, broadcast, no data
	AddrPage1Broadcast = 0x6E // SPA1 - select page 1, broadcast, no data
	AddrPageRead       = 0x6D // RPA  - read active page address

	AddrRswpSet0  = 0x62
	AddrRswpSet1  = 0x68
	AddrRswpSet2  = 0x6A
	AddrRswpSet3  = 0x60
	AddrRswpRead0 = 0x63
	AddrRswpRead1 = 0x69
	AddrRswpRead2 = 0x6B
	AddrRswpRead3 = 0x61
	AddrRswpClear = 0x66 // CWP, pre-DDR4 only

	AddrTempSensorBase = 0b0011 << 3 // + (addr & 0b111), DDR4-detect fallback probe
	AddrPswpBankBase   = 0b0110 << 3 // + (addr & 0b111)
)
