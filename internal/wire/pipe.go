package wire

import (
	"net"
	"time"
)

// PipeTransport is an in-memory Transport backed by net.Pipe, used to
// connect internal/firmware's Simulator to a programmer client without
// any real hardware - the same role an in-memory listener plays in the
// teacher's agent integration tests.
type PipeTransport struct {
	conn net.Conn
}

// NewPipeTransportPair returns two connected, in-memory transports: one
// for the host-side client, one for the firmware simulator.
func NewPipeTransportPair() (host *PipeTransport, firmware *PipeTransport) {
	a, b := net.Pipe()
	return &PipeTransport{conn: a}, &PipeTransport{conn: b}
}

func (p *PipeTransport) Read(b []byte) (int, error)  { return p.conn.Read(b) }
func (p *PipeTransport) Write(b []byte) (int, error) { return p.conn.Write(b) }
func (p *PipeTransport) Close() error                { return p.conn.Close() }

func (p *PipeTransport) SetDeadline(t time.Time) error {
	return p.conn.SetDeadline(t)
}
