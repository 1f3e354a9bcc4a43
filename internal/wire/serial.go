package wire

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// SerialTransport speaks the wire protocol over a real serial link to a
// programmer device, grounded on the port-opening idiom of go.bug.st/serial
// as used for line-oriented microcontroller protocols.
type SerialTransport struct {
	port serial.Port
}

// DefaultBaudRate matches the programmer firmware's fixed UART rate.
const DefaultBaudRate = 115200

// OpenSerial opens portName at baud (0 selects DefaultBaudRate) and
// returns a ready Transport. The caller must still call AwaitWelcome
// before issuing any command.
func OpenSerial(portName string, baud int) (*SerialTransport, error) {
	if baud == 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("wire: open serial port %s: %w", portName, err)
	}
	return &SerialTransport{port: port}, nil
}

func (s *SerialTransport) Read(p []byte) (int, error)  { return s.port.Read(p) }
func (s *SerialTransport) Write(p []byte) (int, error) { return s.port.Write(p) }
func (s *SerialTransport) Close() error                { return s.port.Close() }

// SetDeadline maps a Transport deadline onto the serial port's read
// timeout (go.bug.st/serial has no per-call absolute deadline, only a
// relative read timeout, so this converts to the remaining duration).
func (s *SerialTransport) SetDeadline(t time.Time) error {
	if t.IsZero() {
		return s.port.SetReadTimeout(serial.NoTimeout)
	}
	d := time.Until(t)
	if d < 0 {
		d = 0
	}
	return s.port.SetReadTimeout(d)
}

// Ports lists the serial ports available on this host, for interactive
// selection by a caller (e.g. the spdctl CLI).
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("wire: list serial ports: %w", err)
	}
	return ports, nil
}
