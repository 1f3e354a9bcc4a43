package programmer

import (
	"testing"
	"time"

	"github.com/mscrnt/spdtool/internal/wire"
)

// stubRespond is a minimal test double that answers exactly one request
// with a canned raw response, enough to exercise Session's framing
// without depending on internal/firmware (which itself depends on this
// package's sibling concepts, not on programmer).
func stubRespond(t *testing.T, peer *wire.PipeTransport, wantOp wire.Opcode, argLen int, resp []byte) {
	t.Helper()
	go func() {
		buf, err := wire.ReadResponse(peer, 1+argLen)
		if err != nil {
			return
		}
		if wire.Opcode(buf[0]) != wantOp {
			return
		}
		_ = peer.SetDeadline(time.Now().Add(time.Second))
		_, _ = peer.Write(resp)
	}()
}

func newTestSession(t *testing.T) (*Session, *wire.PipeTransport) {
	t.Helper()
	host, peer := NewPipeTransportPairForTest()
	go func() {
		_, _ = peer.Write([]byte{byte(wire.Welcome)})
	}()
	sess, err := Open(host, "test", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return sess, peer
}

// NewPipeTransportPairForTest exposes wire.NewPipeTransportPair under a
// package-local name to keep this file's intent self-documenting.
func NewPipeTransportPairForTest() (*wire.PipeTransport, *wire.PipeTransport) {
	return wire.NewPipeTransportPair()
}

func TestSessionTest(t *testing.T) {
	sess, peer := newTestSession(t)
	defer sess.Close()
	stubRespond(t, peer, wire.OpTest, 0, []byte{byte(wire.Welcome)})
	if err := sess.Test(); err != nil {
		t.Fatalf("Test: %v", err)
	}
}

func TestSessionScanBus(t *testing.T) {
	sess, peer := newTestSession(t)
	defer sess.Close()
	stubRespond(t, peer, wire.OpScanBus, 0, []byte{0x05})
	bitmap, err := sess.ScanBus()
	if err != nil {
		t.Fatalf("ScanBus: %v", err)
	}
	if bitmap != 0x05 {
		t.Errorf("ScanBus = 0x%02X, want 0x05", bitmap)
	}
}

func TestSessionRswpBlockRangeRejected(t *testing.T) {
	sess, peer := newTestSession(t)
	defer sess.Close()
	defer peer.Close()
	if _, err := sess.RSWP(4, RswpEnable); err == nil {
		t.Error("RSWP with block=4 should be rejected")
	}
	if _, err := sess.RSWP(-1, RswpEnable); err == nil {
		t.Error("RSWP with block=-1 should be rejected")
	}
}

func TestSessionPageShadowTracksReads(t *testing.T) {
	sess, peer := newTestSession(t)
	defer sess.Close()
	stubRespond(t, peer, wire.OpRead, 4, make([]byte, 4))
	if _, err := sess.Read(0x50, 0x100, 4); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if sess.page != 1 {
		t.Errorf("page shadow = %d, want 1 after reading offset 0x100", sess.page)
	}
}
