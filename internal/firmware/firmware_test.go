package firmware_test

import (
	"testing"

	"github.com/mscrnt/spdtool/internal/firmware"
	"github.com/mscrnt/spdtool/internal/programmer"
	"github.com/mscrnt/spdtool/internal/wire"
)

func newHarness(t *testing.T, devices map[byte]*firmware.Device) (*programmer.Session, *firmware.Simulator) {
	t.Helper()
	hostSide, fwSide := wire.NewPipeTransportPair()
	sim := firmware.NewSimulator(fwSide, devices, "20260115", nil)
	go func() { _ = sim.Run() }()

	sess, err := programmer.Open(hostSide, "test", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { sess.Close() })
	return sess, sim
}

func TestSimulatorTestAndVersion(t *testing.T) {
	sess, _ := newHarness(t, nil)
	if err := sess.Test(); err != nil {
		t.Fatalf("Test: %v", err)
	}
	v, err := sess.Version()
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v != 20260115 {
		t.Errorf("Version = %d, want 20260115", v)
	}
}

// S3 - Scan with devices present at 0x50 and 0x52 returns 0b00000101;
// an empty bus returns 0x00.
func TestSimulatorScanBus(t *testing.T) {
	devices := map[byte]*firmware.Device{
		0x50: firmware.NewDevice(512),
		0x52: firmware.NewDevice(512),
	}
	sess, _ := newHarness(t, devices)
	bitmap, err := sess.ScanBus()
	if err != nil {
		t.Fatalf("ScanBus: %v", err)
	}
	if bitmap != 0x05 {
		t.Errorf("ScanBus = 0b%08b, want 0b00000101", bitmap)
	}
}

func TestSimulatorScanBusEmpty(t *testing.T) {
	sess, _ := newHarness(t, nil)
	bitmap, err := sess.ScanBus()
	if err != nil {
		t.Fatalf("ScanBus: %v", err)
	}
	if bitmap != 0x00 {
		t.Errorf("ScanBus = 0x%02X, want 0x00", bitmap)
	}
}

// S4 - page-adjust read: the page shadow starts unknown, so the first
// read at offset 0xFE selects page 0 before reading and runs across the
// 0x100 boundary; a following read at offset 0x100 selects page 1.
func TestSimulatorPageAdjustRead(t *testing.T) {
	dev := firmware.NewDevice(512)
	for i := range dev.Bytes {
		dev.Bytes[i] = byte(i)
	}
	sess, _ := newHarness(t, map[byte]*firmware.Device{0x50: dev})

	got, err := sess.Read(0x50, 0x0FE, 4)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []byte{0xFE, 0xFF, 0x00, 0x01}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = 0x%02X, want 0x%02X", i, got[i], want[i])
		}
	}

	got, err = sess.Read(0x50, 0x100, 4)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i, b := range got {
		if b != byte(0x100+i) {
			t.Fatalf("byte %d = 0x%02X, want 0x%02X", i, b, byte(0x100+i))
		}
	}
}

// S5 - RSWP set+read on DDR4 with HV feedback operational.
func TestSimulatorRswpSetAndQuery(t *testing.T) {
	sess, _ := newHarness(t, map[byte]*firmware.Device{0x50: firmware.NewDevice(512)})

	state, err := sess.RSWP(2, programmer.RswpEnable)
	if err != nil {
		t.Fatalf("RSWP enable: %v", err)
	}
	if state != programmer.RswpEnable {
		t.Errorf("RSWP enable response = %v, want enable", state)
	}

	state, err = sess.RSWP(2, programmer.RswpQuery)
	if err != nil {
		t.Fatalf("RSWP query: %v", err)
	}
	if state != programmer.RswpEnable {
		t.Errorf("RSWP query after enable = %v, want enable", state)
	}

	state, err = sess.RSWP(2, programmer.RswpDisable)
	if err != nil {
		t.Fatalf("RSWP disable: %v", err)
	}
	if state != programmer.RswpEnable {
		t.Errorf("RSWP disable ack = %v, want enable(success)", state)
	}

	state, err = sess.RSWP(2, programmer.RswpQuery)
	if err != nil {
		t.Fatalf("RSWP query after disable: %v", err)
	}
	if state != programmer.RswpDisable {
		t.Errorf("RSWP query after disable = %v, want disable", state)
	}
}

// RSWP without a functioning HV feedback loop must fail.
func TestSimulatorRswpWithoutHVFeedback(t *testing.T) {
	sess, sim := newHarness(t, map[byte]*firmware.Device{0x50: firmware.NewDevice(512)})
	sim.SetHVFeedbackOK(false)

	if _, err := sess.RSWP(0, programmer.RswpEnable); err == nil {
		t.Fatal("RSWP enable should fail without HV feedback")
	}
}

func TestSimulatorNameRoundTrip(t *testing.T) {
	sess, _ := newHarness(t, nil)
	if err := sess.SetName("bench-rig-1"); err != nil {
		t.Fatalf("SetName: %v", err)
	}
	got, err := sess.Name()
	if err != nil {
		t.Fatalf("Name: %v", err)
	}
	if got != "bench-rig-1" {
		t.Errorf("Name = %q, want %q", got, "bench-rig-1")
	}
}

func TestSimulatorWriteByteAndReadBack(t *testing.T) {
	sess, _ := newHarness(t, map[byte]*firmware.Device{0x50: firmware.NewDevice(512)})
	if err := sess.Write(0x50, 10, 0x42); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := sess.Read(0x50, 10, 1)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got[0] != 0x42 {
		t.Errorf("byte 10 = 0x%02X, want 0x42", got[0])
	}
}

func TestSimulatorFactoryResetClearsName(t *testing.T) {
	sess, _ := newHarness(t, nil)
	if err := sess.SetName("temp-name"); err != nil {
		t.Fatalf("SetName: %v", err)
	}
	if err := sess.FactoryReset(); err != nil {
		t.Fatalf("FactoryReset: %v", err)
	}
	got, err := sess.Name()
	if err != nil {
		t.Fatalf("Name: %v", err)
	}
	if got != "" {
		t.Errorf("Name after factory reset = %q, want empty", got)
	}
}
