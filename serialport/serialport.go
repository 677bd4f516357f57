/*
UART transport on go.bug.st/serial.

One Port per physical device. The sensors speak 9600 8N1 almost without
exception, so that is the default mode. Before opening, the port is checked
for other users: these sensors cannot be shared between processes.
*/

package serialport

import (
	"fmt"
	"strings"
	"time"

	"github.com/hjkoskel/listserialports"
	"go.bug.st/serial"

	"pmsense"
)

// DefaultBaudRate fits every supported sensor family.
const DefaultBaudRate = 9600

// Port implements pmsense.Transport over a serial device.
type Port struct {
	port serial.Port
	name string
}

// Mode holds the serial parameters. Zero values mean 9600 8N1.
type Mode struct {
	BaudRate int
}

// Open opens the serial device and configures it for sensor traffic.
func Open(deviceName string, mode Mode) (*Port, error) {
	// socat pty pairs are how the simulator attaches; skip the in-use
	// check for those
	if !strings.HasPrefix(deviceName, "/dev/pts") {
		pids, _, err := listserialports.FileIsInUseByPids(deviceName)
		if err == nil && len(pids) > 0 {
			return nil, fmt.Errorf("serial port %v is in use (by PID %v)", deviceName, pids)
		}
	}

	baud := mode.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	p, err := serial.Open(deviceName, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %v: %w", deviceName, err)
	}
	return &Port{port: p, name: deviceName}, nil
}

// Name returns the device path.
func (p *Port) Name() string { return p.name }

// ReadAvailable reads up to max bytes, returning whatever arrived within
// timeout. An elapsed window with no bytes is not an error.
func (p *Port) ReadAvailable(max int, timeout time.Duration) ([]byte, error) {
	if err := p.port.SetReadTimeout(timeout); err != nil {
		return nil, err
	}
	buf := make([]byte, max)
	// a timed-out read reports n=0 with a nil error
	n, err := p.port.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Write sends the bytes to the device in full.
func (p *Port) Write(b []byte) error {
	n, err := p.port.Write(b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(b))
	}
	return nil
}

// Close releases the device.
func (p *Port) Close() error {
	return p.port.Close()
}

var _ pmsense.Transport = (*Port)(nil)
