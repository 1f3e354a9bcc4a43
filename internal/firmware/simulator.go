// Package firmware simulates the programmer device's side of the wire
// protocol: opcode dispatch, the DDR4 page-address shadow, RSWP/PSWP
// sequencing through a simulated high-voltage generator, and the boot
// self-test. A Simulator speaks the protocol over any wire.Transport,
// so it can sit on the far end of a wire.PipeTransport pair and let the
// rest of the stack (internal/programmer, internal/eeprom,
// internal/spd) be exercised without real hardware.
package firmware

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/mscrnt/spdtool/internal/ddr4page"
	"github.com/mscrnt/spdtool/internal/spdcore"
	"github.com/mscrnt/spdtool/internal/wire"
)

// frameTimeout bounds how long the simulator waits for a frame's
// argument bytes once the opcode byte has arrived; a short frame
// silently aborts the command, matching real firmware's behavior under
// a dropped or truncated write.
const frameTimeout = 100 * time.Millisecond

// hvSettleDelay is how long asserting high voltage takes to settle
// before the feedback pin can be trusted.
const hvSettleDelay = 25 * time.Millisecond

// Simulator owns all firmware-side state for one programmer device:
// the attached EEPROMs, the DDR4 page shadow, control pins, write
// protection, and persistent NVRAM-backed settings.
type Simulator struct {
	mu sync.Mutex

	transport wire.Transport
	registry  *OpRegistry
	logger    *log.Logger

	devices map[byte]*Device // I2C address -> attached EEPROM

	page int // -1 = unknown, else last broadcast SPA page

	pinOffline bool
	pinSA1     bool
	pinHV      bool

	// hvFeedbackOK simulates whether the high-voltage generator's
	// feedback loop reports the requested state; a test can flip this
	// to exercise the "HV asserted but feedback absent" failure path.
	hvFeedbackOK bool

	rswpBlocks [4]bool       // DDR4 RSWP state, indexed by block
	rswpLegacy bool          // pre-DDR4 block-0 RSWP state (SA1-gated)
	pswp       map[byte]bool // address -> permanently protected

	name        [16]byte
	nameLen     int
	featureBits byte // bit 0 = fast I2C clock

	rswpCap byte // capability bitmask from the last self-test

	version string // 8 ASCII digits, YYYYMMDD
}

// NewSimulator returns a Simulator with every control pin low, no
// write protection set, and the given devices attached at their I2C
// addresses. version is the 8-digit firmware build date reported by
// the Version opcode.
func NewSimulator(t wire.Transport, devices map[byte]*Device, version string, logger *log.Logger) *Simulator {
	if logger == nil {
		logger = log.Default()
	}
	if devices == nil {
		devices = make(map[byte]*Device)
	}
	s := &Simulator{
		transport:    t,
		registry:     NewOpRegistry(),
		logger:       logger,
		devices:      devices,
		page:         -1,
		hvFeedbackOK: true,
		pswp:         make(map[byte]bool),
		version:      version,
	}
	registerDefaultOps(s.registry)
	s.RunSelfTest()
	return s
}

// SetHVFeedbackOK configures whether the simulated high-voltage
// generator's feedback loop reports success on the next assert.
func (s *Simulator) SetHVFeedbackOK(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hvFeedbackOK = ok
}

// Attach adds or replaces the device at addr.
func (s *Simulator) Attach(addr byte, d *Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[addr] = d
}

// Run sends the welcome byte and then services opcodes from the
// transport until it closes. It returns nil on a clean close and a
// non-nil error for any other transport failure.
func (s *Simulator) Run() error {
	if err := s.writeAll([]byte{byte(wire.Welcome)}); err != nil {
		return err
	}
	for {
		opByte, err := s.readFrame(1)
		if err != nil {
			if errors.Is(err, spdcore.ErrClosed) {
				return nil
			}
			continue
		}
		op := wire.Opcode(opByte[0])

		entry, ok := s.registry.get(op)
		if !ok {
			_ = s.writeAll([]byte{byte(wire.Unknown)})
			continue
		}

		args, err := s.readFrame(entry.fixedArgLen)
		if err != nil {
			continue // malformed/short frame: drop silently, no response
		}
		if entry.extraLen != nil {
			extra, err := s.readFrame(entry.extraLen(args))
			if err != nil {
				continue
			}
			args = append(args, extra...)
		}

		resp, err := entry.handler(s, args)
		if err != nil {
			_ = s.writeAll([]byte{byte(wire.RespError)})
			continue
		}
		if err := s.writeAll(resp); err != nil {
			return err
		}
	}
}

func (s *Simulator) readFrame(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	if err := s.transport.SetDeadline(time.Now().Add(frameTimeout)); err != nil {
		return nil, err
	}
	return wire.ReadResponse(s.transport, n)
}

func (s *Simulator) writeAll(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if err := s.transport.SetDeadline(time.Now().Add(wire.DefaultSessionTimeout)); err != nil {
		return err
	}
	_, err := s.transport.Write(b)
	return err
}

// ensurePage broadcasts SPA0/SPA1 if the page offset requires differs
// from the current shadow, mirroring the programmer client's own
// mirror of this same invariant.
func (s *Simulator) ensurePage(offset int) {
	page, needed := ddr4page.Adjust(s.page, offset)
	if needed {
		// A real broadcast to 0x6C/0x6E has no further effect on this
		// simulator's storage, which is addressed by flat offset
		// regardless of page; only the shadow state changes.
		s.page = ddr4page.Applied(page)
	}
}

func (s *Simulator) assertHV() bool {
	s.pinHV = true
	time.Sleep(hvSettleDelay)
	return s.hvFeedbackOK
}

func (s *Simulator) deassertHV() {
	s.pinHV = false
}
