package firmware

import (
	"fmt"

	"github.com/mscrnt/spdtool/internal/wire"
)

// registerDefaultOps wires every opcode in the wire protocol's table to
// its handler. Argument lengths mirror the fixed per-opcode frame
// shapes; Read, WriteByte, WritePage, PinControl, RswpControl,
// PswpControl, and the detect opcodes have no higher-level counterpart
// to this registry other than the handlers themselves.
func registerDefaultOps(r *OpRegistry) {
	must := func(err error) {
		if err != nil {
			panic(err) // programmer error: duplicate opcode registration
		}
	}

	must(r.Register(wire.OpTest, "test", 0, handleTest))
	must(r.Register(wire.OpVersion, "version", 0, handleVersion))
	must(r.Register(wire.OpRswpReport, "rswp-report", 0, handleRswpReport))
	must(r.Register(wire.OpRetestRswp, "retest-rswp", 0, handleRetestRswp))
	must(r.Register(wire.OpScanBus, "scan-bus", 0, handleScanBus))
	must(r.Register(wire.OpProbe, "probe", 1, handleProbe))
	must(r.Register(wire.OpRead, "read", 4, handleRead))
	must(r.Register(wire.OpWriteByte, "write-byte", 4, handleWriteByte))
	must(r.RegisterVariable(wire.OpWritePage, "write-page", 4,
		func(fixed []byte) int { return int(fixed[3]) }, handleWritePage))
	must(r.Register(wire.OpPinControl, "pin-control", 2, handlePinControl))
	must(r.Register(wire.OpRswpControl, "rswp-control", 2, handleRswpControl))
	must(r.Register(wire.OpPswpControl, "pswp-control", 2, handlePswpControl))
	must(r.Register(wire.OpI2CClock, "i2c-clock", 1, handleI2CClock))
	must(r.RegisterVariable(wire.OpName, "name", 1,
		func(fixed []byte) int {
			if wire.Opcode(fixed[0]) == wire.QueryState {
				return 0
			}
			return int(fixed[0])
		}, handleName))
	must(r.Register(wire.OpDDR4Detect, "ddr4-detect", 1, handleDDR4Detect))
	must(r.Register(wire.OpDDR5Detect, "ddr5-detect", 1, handleDDR5Detect))
	must(r.Register(wire.OpFactoryReset, "factory-reset", 0, handleFactoryReset))
}

func handleTest(s *Simulator, _ []byte) ([]byte, error) {
	return []byte{byte(wire.Welcome)}, nil
}

func handleVersion(s *Simulator, _ []byte) ([]byte, error) {
	return []byte(fmt.Sprintf("%8s", s.version)), nil
}

func handleRswpReport(s *Simulator, _ []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []byte{s.rswpCap}, nil
}

func handleRetestRswp(s *Simulator, _ []byte) ([]byte, error) {
	s.RunSelfTest()
	s.mu.Lock()
	defer s.mu.Unlock()
	return []byte{s.rswpCap}, nil
}

func handleScanBus(s *Simulator, _ []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []byte{s.scanBitmapLocked()}, nil
}

func handleProbe(s *Simulator, args []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[args[0]]; ok {
		return []byte{byte(wire.RespSuccess)}, nil
	}
	return []byte{byte(wire.RespError)}, nil
}

func handleRead(s *Simulator, args []byte) ([]byte, error) {
	addr := args[0]
	offset := int(args[1])<<8 | int(args[2])
	length := int(args[3])

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensurePage(offset)

	dev, ok := s.devices[addr]
	if !ok {
		return nil, fmt.Errorf("firmware: read: no device at 0x%02X", addr)
	}
	out := make([]byte, length)
	for i := 0; i < length; i++ {
		b, ok := dev.readByte(uint16(offset + i))
		if !ok {
			return nil, fmt.Errorf("firmware: read: offset %d out of range", offset+i)
		}
		out[i] = b
	}
	return out, nil
}

func handleWriteByte(s *Simulator, args []byte) ([]byte, error) {
	addr := args[0]
	offset := int(args[1])<<8 | int(args[2])
	value := args[3]

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensurePage(offset)

	if s.pswp[addr] {
		return []byte{byte(wire.RespError)}, nil
	}
	dev, ok := s.devices[addr]
	if !ok || !dev.writeByte(uint16(offset), value) {
		return []byte{byte(wire.RespError)}, nil
	}
	return []byte{byte(wire.RespSuccess)}, nil
}

func handleWritePage(s *Simulator, args []byte) ([]byte, error) {
	addr := args[0]
	offset := int(args[1])<<8 | int(args[2])
	length := int(args[3])
	data := args[4:]
	if len(data) != length {
		return []byte{byte(wire.RespError)}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensurePage(offset)

	if s.pswp[addr] {
		return []byte{byte(wire.RespError)}, nil
	}
	dev, ok := s.devices[addr]
	if !ok {
		return []byte{byte(wire.RespError)}, nil
	}
	for i, b := range data {
		if !dev.writeByte(uint16(offset+i), b) {
			return []byte{byte(wire.RespError)}, nil
		}
	}
	return []byte{byte(wire.RespSuccess)}, nil
}

func handlePinControl(s *Simulator, args []byte) ([]byte, error) {
	pin := wire.Pin(args[0])
	state := args[1]

	s.mu.Lock()
	defer s.mu.Unlock()

	var target *bool
	switch pin {
	case wire.PinOffline:
		target = &s.pinOffline
	case wire.PinSA1:
		target = &s.pinSA1
	case wire.PinHV:
		target = &s.pinHV
	default:
		return []byte{byte(wire.RespError)}, nil
	}

	if wire.Opcode(state) == wire.QueryState {
		if *target {
			return []byte{byte(wire.RespSuccess)}, nil
		}
		return []byte{byte(wire.RespZero)}, nil
	}
	*target = state != 0
	return []byte{byte(wire.RespSuccess)}, nil
}

// handleRswpControl sequences DDR4 block RSWP changes: assert HV,
// require feedback before committing the new state, then de-assert HV
// regardless of outcome.
func handleRswpControl(s *Simulator, args []byte) ([]byte, error) {
	block := int(args[0])
	state := args[1]
	if block < 0 || block > 3 {
		return []byte{byte(wire.RespError)}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if wire.Opcode(state) == wire.QueryState {
		if s.rswpBlocks[block] {
			return []byte{byte(wire.RespSuccess)}, nil
		}
		return []byte{byte(wire.RespZero)}, nil
	}

	if !s.assertHV() {
		s.deassertHV()
		return []byte{byte(wire.RespError)}, nil
	}
	if state == 0 {
		s.rswpBlocks = [4]bool{}
	} else {
		s.rswpBlocks[block] = true
	}
	s.deassertHV()
	return []byte{byte(wire.RespSuccess)}, nil
}

// handlePswpControl records PSWP as a per-address flag and answers ACK;
// it does not model the PSWP device-select code. There is no disable
// path, so a query simply reports whatever was last set.
func handlePswpControl(s *Simulator, args []byte) ([]byte, error) {
	addr := args[0]
	state := args[1]

	s.mu.Lock()
	defer s.mu.Unlock()

	if wire.Opcode(state) == wire.QueryState {
		if s.pswp[addr] {
			return []byte{byte(wire.RespSuccess)}, nil
		}
		return []byte{byte(wire.RespZero)}, nil
	}
	s.pswp[addr] = true
	return []byte{byte(wire.RespSuccess)}, nil
}

func handleI2CClock(s *Simulator, args []byte) ([]byte, error) {
	mode := args[0]

	s.mu.Lock()
	defer s.mu.Unlock()

	const fastBit = 1 << 0
	if wire.Opcode(mode) == wire.QueryState {
		if s.featureBits&fastBit != 0 {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	}
	if mode == 0 {
		s.featureBits &^= fastBit
	} else {
		s.featureBits |= fastBit
	}
	return []byte{byte(wire.RespSuccess)}, nil
}

func handleName(s *Simulator, args []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if wire.Opcode(args[0]) == wire.QueryState {
		padded := make([]byte, 16)
		copy(padded, s.name[:s.nameLen])
		return padded, nil
	}

	n := int(args[0])
	if n > 16 {
		return []byte{byte(wire.RespError)}, nil
	}
	copy(s.name[:], args[1:1+n])
	s.nameLen = n
	return []byte{byte(wire.RespSuccess)}, nil
}

func handleDDR4Detect(s *Simulator, args []byte) ([]byte, error) {
	addr := args[0]

	s.mu.Lock()
	defer s.mu.Unlock()

	dev, ok := s.devices[addr]
	if !ok {
		return []byte{byte(wire.RespError)}, nil
	}
	if len(dev.Bytes) == 512 {
		return []byte{byte(wire.RespSuccess)}, nil
	}
	return []byte{byte(wire.RespError)}, nil
}

// handleDDR5Detect reads MR0 via the SPD5 hub's device-type-identifier
// and reports presence when it matches the DDR5 hub range {0x51, 0x52}.
// The simulator has no separate MR0 register, so a 1024-byte device's
// identifier is treated as already resolving into that range.
func handleDDR5Detect(s *Simulator, args []byte) ([]byte, error) {
	addr := args[0]

	s.mu.Lock()
	defer s.mu.Unlock()

	dev, ok := s.devices[addr]
	if !ok || len(dev.Bytes) != 1024 {
		return []byte{byte(wire.RespError)}, nil
	}
	return []byte{byte(wire.RespSuccess)}, nil
}

func handleFactoryReset(s *Simulator, _ []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = [16]byte{}
	s.nameLen = 0
	s.featureBits = 0
	return []byte{byte(wire.RespSuccess)}, nil
}
