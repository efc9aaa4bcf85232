// Package serial opens the link to an RTC board.
package serial

import (
	"io"
	"time"

	"github.com/juju/errors"
	"github.com/tarm/serial"
)

// DefaultBaud is the UART rate of the bluepill firmware. USB CDC ignores it.
const DefaultBaud = 115200

// Config holds serial port configuration.
type Config struct {
	// Device path, e.g. "/dev/ttyACM0" or "COM3".
	Device string

	Baud int

	// ReadTimeout bounds a single read. Zero blocks.
	ReadTimeout time.Duration
}

// DefaultConfig returns the configuration for device at DefaultBaud.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// Open opens a native serial port.
func Open(cfg *Config) (io.ReadWriteCloser, error) {
	if cfg == nil || cfg.Device == "" {
		return nil, errors.New("no serial device given")
	}
	baud := cfg.Baud
	if baud == 0 {
		baud = DefaultBaud
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, errors.Annotatef(err, "failed to open serial port %s", cfg.Device)
	}
	return &timeoutPort{port}, nil
}

// timeoutPort reports a read timeout as an empty read instead of EOF, so
// the reader loop keeps polling.
type timeoutPort struct {
	*serial.Port
}

func (p *timeoutPort) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if err == io.EOF && n == 0 {
		return 0, nil
	}
	return n, err
}
