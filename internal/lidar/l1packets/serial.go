package l1packets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/banshee-data/lidarsynth/internal/monitoring"
)

// PortOptions describes the serial connection parameters used when opening
// the sensor port. The JSON names match the tuning file.
type PortOptions struct {
	BaudRate int    `json:"serial_baud_rate"`
	DataBits int    `json:"serial_data_bits"`
	StopBits int    `json:"serial_stop_bits"`
	Parity   string `json:"serial_parity"`
}

// DefaultBaudRate is the RPLIDAR A-series UART rate.
const DefaultBaudRate = 115200

// Normalize validates the options and applies defaults for any unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = DefaultBaudRate
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	parity := strings.TrimSpace(strings.ToUpper(opts.Parity))
	switch parity {
	case "", "N", "NONE":
		parity = "N"
	case "E", "EVEN":
		parity = "E"
	case "O", "ODD":
		parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}

	opts.Parity = parity
	return opts, nil
}

// Equal reports whether two PortOptions describe the same serial configuration.
func (o PortOptions) Equal(other PortOptions) bool {
	a, errA := o.Normalize()
	b, errB := other.Normalize()
	if errA != nil || errB != nil {
		return false
	}
	return a == b
}

// SerialMode converts the port options into the serial.Mode structure required by
// go.bug.st/serial when opening a port.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}

	switch opts.Parity {
	case "N":
		mode.Parity = serial.NoParity
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}

	return mode, nil
}

// readTimeout bounds each port read so Next can notice cancellation.
const readTimeout = 100 * time.Millisecond

// timeoutPort turns go.bug.st/serial's (0, nil) read timeout into an error
// that the node reader can retry on.
type timeoutPort struct {
	serial.Port
}

func (p timeoutPort) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if n == 0 && err == nil {
		return 0, errReadTimeout
	}
	return n, err
}

// OpenSerial opens the sensor at path, spins up the motor and starts a
// standard scan. The scan handshake must complete within startTimeout.
func OpenSerial(ctx context.Context, path string, opts PortOptions, startTimeout time.Duration) (*StreamSource, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, fmt.Errorf("serial options: %w", err)
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", path, err)
	}
	// A-series adapters drive the motor enable from DTR, active low.
	if err := port.SetDTR(false); err != nil {
		monitoring.Logf("[l1packets] could not clear DTR on %s: %v", path, err)
	}

	// Stop any scan left running by a previous session, then flush what it sent.
	if _, err := port.Write(StopCommand()); err != nil {
		port.Close()
		return nil, fmt.Errorf("send stop command to %s: %w", path, err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := port.ResetInputBuffer(); err != nil {
		monitoring.Logf("[l1packets] could not flush input on %s: %v", path, err)
	}

	src := NewStreamSource(timeoutPort{port})
	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := src.StartScan(startCtx); err != nil {
		src.Close()
		return nil, fmt.Errorf("start scan on %s: %w", path, err)
	}

	monitoring.Logf("[l1packets] scanning on %s at %d baud", path, mode.BaudRate)
	return src, nil
}

// ListPorts returns the serial ports visible to the host.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}
