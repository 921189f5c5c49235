package hardware

import (
	"bufio"
	"fmt"
	"strings"
	"sync"

	"go.bug.st/serial.v1"
)

// DefaultSerialBaud matches the relay board firmware.
const DefaultSerialBaud = 9600

// SerialDriver drives a relay board that speaks a line protocol:
//
//	out <pin> <0|1>\n   -> no reply
//	in <pin>\n          -> "0\n" or "1\n"
type SerialDriver struct {
	mu     sync.Mutex
	port   serial.Port
	reader *bufio.Reader
}

// OpenSerial opens the relay board port.
func OpenSerial(portName string, baud int) (*SerialDriver, error) {
	if portName == "" {
		return nil, fmt.Errorf("hardware: serial port not configured")
	}
	if baud <= 0 {
		baud = DefaultSerialBaud
	}
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("hardware: open serial %s: %w", portName, err)
	}
	_ = port.ResetInputBuffer()
	return &SerialDriver{port: port, reader: bufio.NewReader(port)}, nil
}

// Output writes one pin level. The board does not acknowledge.
func (s *SerialDriver) Output(pin int, high bool) error {
	level := 0
	if high {
		level = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.port, "out %d %d\n", pin, level)
	return err
}

// Input requests one pin level and waits for the reply line.
func (s *SerialDriver) Input(pin int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.port, "in %d\n", pin); err != nil {
		return false, err
	}
	line, err := s.reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("hardware: serial read: %w", err)
	}
	switch strings.TrimSpace(line) {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, fmt.Errorf("hardware: unexpected serial reply %q", strings.TrimSpace(line))
	}
}

// Close closes the port.
func (s *SerialDriver) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Close()
}
