package hardware

import (
	"errors"
	"fmt"
)

// Backend names accepted by NewDriver.
const (
	BackendGPIO   = "gpio"
	BackendSerial = "serial"
	BackendSim    = "sim"
)

// ErrUnknownBackend is returned for a backend name NewDriver does not know.
var ErrUnknownBackend = errors.New("hardware: unknown backend")

// DriverConfig selects and parameterizes a pin driver.
type DriverConfig struct {
	Backend    string
	SerialPort string
	SerialBaud int
}

// NewDriver opens the pin driver for the configured backend.
func NewDriver(cfg DriverConfig) (Driver, error) {
	switch cfg.Backend {
	case BackendGPIO:
		d, err := OpenGPIO()
		if err != nil {
			return nil, err
		}
		return d, nil
	case BackendSerial:
		d, err := OpenSerial(cfg.SerialPort, cfg.SerialBaud)
		if err != nil {
			return nil, err
		}
		return d, nil
	case BackendSim, "":
		return NewSimDriver(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
