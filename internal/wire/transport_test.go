package wire

import (
	"testing"
	"time"
)

func TestWriteFrameReadResponseRoundTrip(t *testing.T) {
	host, peer := NewPipeTransportPair()
	defer host.Close()
	defer peer.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf, err := ReadResponse(peer, 2)
		if err != nil {
			t.Errorf("peer ReadResponse: %v", err)
			return
		}
		if Opcode(buf[0]) != OpTest {
			t.Errorf("got opcode 0x%02X, want OpTest", buf[0])
		}
		_ = peer.SetDeadline(time.Time{})
		if _, err := peer.Write([]byte{byte(RespSuccess)}); err != nil {
			t.Errorf("peer write: %v", err)
		}
	}()

	if err := WriteFrame(host, OpTest, []byte{0x00}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	resp, err := ReadResponse(host, 1)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if Opcode(resp[0]) != RespSuccess {
		t.Errorf("response = 0x%02X, want RespSuccess", resp[0])
	}
	<-done
}

func TestAwaitWelcome(t *testing.T) {
	host, peer := NewPipeTransportPair()
	defer host.Close()
	defer peer.Close()

	go func() {
		_ = peer.SetDeadline(time.Time{})
		_, _ = peer.Write([]byte{byte(Welcome)})
	}()

	if err := AwaitWelcome(host, WelcomeTimeout); err != nil {
		t.Fatalf("AwaitWelcome: %v", err)
	}
}
