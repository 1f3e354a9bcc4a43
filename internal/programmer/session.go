// Package programmer implements the host-side client for the wire
// protocol: one method per firmware opcode, a page-address shadow
// mirror for DDR4, and a persistent-name/clock-mode facade over the
// programmer's NVRAM.
package programmer

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mscrnt/spdtool/internal/ddr4page"
	"github.com/mscrnt/spdtool/internal/spdcore"
	"github.com/mscrnt/spdtool/internal/wire"
	"golang.org/x/time/rate"
)

// RswpCapability is a bitmask of RAM types the attached programmer can
// perform RSWP on, as reported by RswpReport/RetestRswp.
type RswpCapability byte

const (
	CapDDR2 RswpCapability = 1 << 0
	CapDDR3 RswpCapability = 1 << 1
	CapDDR4 RswpCapability = 1 << 2
	CapDDR5 RswpCapability = 1 << 3
)

// Session is a session handle over a single programmer device. It owns
// the page-address shadow invariant and serializes every command issued
// through it: one command's request/response exchange completes before
// the next begins. Sequences of commands are not held exclusive.
type Session struct {
	mu        sync.Mutex // held for each command's request/response exchange
	transport wire.Transport
	portName  string

	addr    byte // currently selected I2C target address
	page    int  // -1 = unknown, else last known SPA page (0 or 1)
	version int  // cached firmware version, 0 until Version() is called

	limiter *rate.Limiter
	logger  *log.Logger
}

// commandsPerSecond throttles outgoing commands so a bursty caller can
// never outrun the firmware's 100ms per-frame argument-read timeout.
const commandsPerSecond = 50

// Open performs the welcome handshake over t and returns a ready Session.
// portName is stored only for diagnostics/logging.
func Open(t wire.Transport, portName string, logger *log.Logger) (*Session, error) {
	if err := wire.AwaitWelcome(t, wire.WelcomeTimeout); err != nil {
		return nil, fmt.Errorf("programmer: open %s: %w", portName, err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Session{
		transport: t,
		portName:  portName,
		page:      -1,
		limiter:   rate.NewLimiter(rate.Limit(commandsPerSecond), 1),
		logger:    logger,
	}, nil
}

// Close releases the underlying transport. The session must not be used
// afterwards; a timeout invalidates request/response alignment and the
// caller must Close and reopen to resynchronize.
func (s *Session) Close() error {
	return s.transport.Close()
}

func (s *Session) throttle() {
	_ = s.limiter.Wait(context.Background())
}

func (s *Session) call(op wire.Opcode, args []byte, respLen int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.throttle()
	if err := wire.WriteFrame(s.transport, op, args); err != nil {
		return nil, err
	}
	resp, err := wire.ReadResponse(s.transport, respLen)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Test sends the liveness opcode and confirms the welcome echo.
func (s *Session) Test() error {
	resp, err := s.call(wire.OpTest, nil, 1)
	if err != nil {
		return fmt.Errorf("programmer: test: %w", err)
	}
	if wire.Opcode(resp[0]) != wire.Welcome {
		return fmt.Errorf("programmer: test: %w", spdcore.ErrUnsupported)
	}
	return nil
}

// Version returns the firmware build date as YYYYMMDD.
func (s *Session) Version() (int, error) {
	resp, err := s.call(wire.OpVersion, nil, 8)
	if err != nil {
		return 0, fmt.Errorf("programmer: version: %w", err)
	}
	var v int
	if _, err := fmt.Sscanf(string(resp), "%8d", &v); err != nil {
		return 0, fmt.Errorf("programmer: version: malformed response %q", resp)
	}
	s.version = v
	return v, nil
}

// ScanBus returns a bitmap of addresses 0x50..0x57 that ACK a probe; bit
// i corresponds to address 0x50+i.
func (s *Session) ScanBus() (byte, error) {
	resp, err := s.call(wire.OpScanBus, nil, 1)
	if err != nil {
		return 0, fmt.Errorf("programmer: scan bus: %w", err)
	}
	return resp[0], nil
}

// Probe tests whether a single I2C address ACKs.
func (s *Session) Probe(addr byte) (bool, error) {
	resp, err := s.call(wire.OpProbe, []byte{addr}, 1)
	if err != nil {
		return false, fmt.Errorf("programmer: probe 0x%02X: %w", addr, err)
	}
	return wire.Opcode(resp[0]) == wire.RespSuccess, nil
}

// adjustPage updates the session's page shadow to match offset. Actual
// SPA broadcast happens inside the firmware transparently to the
// caller; this only keeps the client's mirror of that state correct so
// later reads can detect desync.
func (s *Session) adjustPage(offset int) {
	page, _ := ddr4page.Adjust(s.page, offset)
	s.page = ddr4page.Applied(page)
}

// Read performs a length-byte read at addr/offset, transparently
// handling DDR4 page addressing.
func (s *Session) Read(addr byte, offset uint16, length int) ([]byte, error) {
	if length <= 0 {
		return nil, fmt.Errorf("programmer: read: length must be positive")
	}
	args := []byte{addr, byte(offset >> 8), byte(offset), byte(length)}
	resp, err := s.call(wire.OpRead, args, length)
	if err != nil {
		return nil, fmt.Errorf("programmer: read 0x%02X@%d: %w", addr, offset, err)
	}
	s.adjustPage(int(offset))
	return resp, nil
}

// Write writes a single byte at addr/offset and waits for the firmware's
// >=10ms write-cycle settle before returning.
func (s *Session) Write(addr byte, offset uint16, value byte) error {
	args := []byte{addr, byte(offset >> 8), byte(offset), value}
	resp, err := s.call(wire.OpWriteByte, args, 1)
	if err != nil {
		return fmt.Errorf("programmer: write 0x%02X@%d: %w", addr, offset, err)
	}
	if wire.Opcode(resp[0]) != wire.RespSuccess {
		return fmt.Errorf("programmer: write 0x%02X@%d: %w", addr, offset, spdcore.ErrNack)
	}
	s.adjustPage(int(offset))
	time.Sleep(10 * time.Millisecond)
	return nil
}

// WritePage writes up to 16 bytes starting at addr/offset; the caller is
// responsible for keeping the range within one EEPROM page boundary.
func (s *Session) WritePage(addr byte, offset uint16, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("programmer: write page: %w: empty page", spdcore.ErrUnsupported)
	}
	if len(data) > 16 {
		return fmt.Errorf("programmer: write page: %w: page exceeds 16 bytes", spdcore.ErrUnsupported)
	}
	args := make([]byte, 0, 4+len(data))
	args = append(args, addr, byte(offset>>8), byte(offset), byte(len(data)))
	args = append(args, data...)
	resp, err := s.call(wire.OpWritePage, args, 1)
	if err != nil {
		return fmt.Errorf("programmer: write page 0x%02X@%d: %w", addr, offset, err)
	}
	if wire.Opcode(resp[0]) != wire.RespSuccess {
		return fmt.Errorf("programmer: write page 0x%02X@%d: %w", addr, offset, spdcore.ErrNack)
	}
	s.adjustPage(int(offset))
	return nil
}

// PinState is the requested/returned state of a PinControl operation.
type PinState byte

const (
	PinLow   PinState = 0x00
	PinHigh  PinState = 0x01
	PinQuery PinState = '?'
)

// PinControl sets or queries a GPIO pin.
func (s *Session) PinControl(pin wire.Pin, state PinState) (PinState, error) {
	resp, err := s.call(wire.OpPinControl, []byte{byte(pin), byte(state)}, 1)
	if err != nil {
		return 0, fmt.Errorf("programmer: pin control: %w", err)
	}
	if wire.Opcode(resp[0]) == wire.RespError {
		return 0, fmt.Errorf("programmer: pin control: %w", spdcore.ErrNack)
	}
	return PinState(resp[0]), nil
}

// RswpState is the requested/returned state of an RSWP operation.
type RswpState byte

const (
	RswpDisable RswpState = 0x00
	RswpEnable  RswpState = 0x01
	RswpQuery   RswpState = '?'
)

// RSWP enables, disables, or queries reversible write protection on a
// block. block must be in {0,1,2,3}; disable ignores the block argument
// at the firmware level but is still range-checked here so callers
// can't silently pass a meaningless value.
func (s *Session) RSWP(block int, state RswpState) (RswpState, error) {
	if block < 0 || block > 3 {
		return 0, fmt.Errorf("programmer: rswp: block %d: %w", block, spdcore.ErrUnsupported)
	}
	resp, err := s.call(wire.OpRswpControl, []byte{byte(block), byte(state)}, 1)
	if err != nil {
		return 0, fmt.Errorf("programmer: rswp block %d: %w", block, err)
	}
	if wire.Opcode(resp[0]) == wire.RespError {
		return 0, fmt.Errorf("programmer: rswp block %d: %w", block, spdcore.ErrNack)
	}
	return RswpState(resp[0]), nil
}

// PSWP enables or queries permanent write protection for addr. There is
// no disable: once set, PSWP cannot be cleared.
func (s *Session) PSWP(addr byte, state RswpState) (RswpState, error) {
	if state == RswpDisable {
		return 0, fmt.Errorf("programmer: pswp: %w: permanent protection cannot be disabled", spdcore.ErrUnsupported)
	}
	resp, err := s.call(wire.OpPswpControl, []byte{addr, byte(state)}, 1)
	if err != nil {
		return 0, fmt.Errorf("programmer: pswp 0x%02X: %w", addr, err)
	}
	if wire.Opcode(resp[0]) == wire.RespError {
		return 0, fmt.Errorf("programmer: pswp 0x%02X: %w", addr, spdcore.ErrNack)
	}
	return RswpState(resp[0]), nil
}

// ClockMode selects the I2C bus speed.
type ClockMode byte

const (
	ClockStandard ClockMode = 0x00 // 100 kHz
	ClockFast     ClockMode = 0x01 // 400 kHz
	ClockQuery    ClockMode = '?'
)

// I2CClock sets or queries the I2C clock mode.
func (s *Session) I2CClock(mode ClockMode) (ClockMode, error) {
	resp, err := s.call(wire.OpI2CClock, []byte{byte(mode)}, 1)
	if err != nil {
		return 0, fmt.Errorf("programmer: i2c clock: %w", err)
	}
	if wire.Opcode(resp[0]) == wire.RespError {
		return 0, fmt.Errorf("programmer: i2c clock: %w", spdcore.ErrUnsupported)
	}
	return ClockMode(resp[0]), nil
}

// Name returns the programmer's persistent 16-byte name, NUL-padded in
// the wire response and trimmed here.
func (s *Session) Name() (string, error) {
	resp, err := s.call(wire.OpName, []byte{byte(wire.QueryState)}, 16)
	if err != nil {
		return "", fmt.Errorf("programmer: get name: %w", err)
	}
	end := len(resp)
	for end > 0 && resp[end-1] == 0 {
		end--
	}
	return string(resp[:end]), nil
}

// SetName persists a new name (truncated/padded to 16 bytes) in the
// programmer's NVRAM.
func (s *Session) SetName(name string) error {
	if len(name) > 16 {
		name = name[:16]
	}
	args := make([]byte, 0, 1+len(name))
	args = append(args, byte(len(name)))
	args = append(args, []byte(name)...)
	resp, err := s.call(wire.OpName, args, 1)
	if err != nil {
		return fmt.Errorf("programmer: set name: %w", err)
	}
	if wire.Opcode(resp[0]) != wire.RespSuccess {
		return fmt.Errorf("programmer: set name: %w", spdcore.ErrNack)
	}
	return nil
}

// RswpReport returns the RAM-type RSWP capability bitmask from the last
// self-test.
func (s *Session) RswpReport() (RswpCapability, error) {
	resp, err := s.call(wire.OpRswpReport, nil, 1)
	if err != nil {
		return 0, fmt.Errorf("programmer: rswp report: %w", err)
	}
	return RswpCapability(resp[0]), nil
}

// RetestRswp reruns the firmware's RSWP capability self-test.
func (s *Session) RetestRswp() (RswpCapability, error) {
	resp, err := s.call(wire.OpRetestRswp, nil, 1)
	if err != nil {
		return 0, fmt.Errorf("programmer: retest rswp: %w", err)
	}
	return RswpCapability(resp[0]), nil
}

// DDR4Detect reports whether a DDR4 module is present at addr.
func (s *Session) DDR4Detect(addr byte) (bool, error) {
	resp, err := s.call(wire.OpDDR4Detect, []byte{addr}, 1)
	if err != nil {
		return false, fmt.Errorf("programmer: ddr4 detect 0x%02X: %w", addr, err)
	}
	return wire.Opcode(resp[0]) == wire.RespSuccess, nil
}

// DDR5Detect reports whether a DDR5 module is present at addr.
func (s *Session) DDR5Detect(addr byte) (bool, error) {
	resp, err := s.call(wire.OpDDR5Detect, []byte{addr}, 1)
	if err != nil {
		return false, fmt.Errorf("programmer: ddr5 detect 0x%02X: %w", addr, err)
	}
	return wire.Opcode(resp[0]) == wire.RespSuccess, nil
}

// FactoryReset clears the programmer's persistent settings region.
func (s *Session) FactoryReset() error {
	resp, err := s.call(wire.OpFactoryReset, nil, 1)
	if err != nil {
		return fmt.Errorf("programmer: factory reset: %w", err)
	}
	if wire.Opcode(resp[0]) != wire.RespSuccess {
		return fmt.Errorf("programmer: factory reset: %w", spdcore.ErrNack)
	}
	return nil
}
