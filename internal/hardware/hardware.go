// Package hardware maps the logical actuators and sensors of the device onto
// physical pin pairs.
//
// Writes are fire-and-forget: a failed write is logged and counted, never
// retried. Writes are not serialized against each other; one logical owner
// per actuator group is a convention held by the callers.
package hardware

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
)

// Actuator is a logical output group.
type Actuator int

const (
	CprLift Actuator = iota
	CprCompress
	AirPump
	CameraPan
)

func (a Actuator) String() string {
	switch a {
	case CprLift:
		return "cpr-lift"
	case CprCompress:
		return "cpr-compress"
	case AirPump:
		return "air-pump"
	case CameraPan:
		return "camera-pan"
	default:
		return fmt.Sprintf("actuator(%d)", int(a))
	}
}

// Value is a discrete actuator command.
type Value int

const (
	Off Value = iota
	On
	Up
	Down
	Left
	Right
)

// Stop is the neutral command for the lift and pan groups.
const Stop = Off

func (v Value) String() string {
	switch v {
	case Off:
		return "off"
	case On:
		return "on"
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("value(%d)", int(v))
	}
}

// Sensor is a logical input.
type Sensor int

const (
	PressureTrigger Sensor = iota
)

func (s Sensor) String() string {
	if s == PressureTrigger {
		return "pressure-trigger"
	}
	return fmt.Sprintf("sensor(%d)", int(s))
}

// Pins is the physical role table (BCM numbering). A negative pin is
// unassigned.
type Pins struct {
	LiftUp      int `mapstructure:"lift-up"`
	LiftDown    int `mapstructure:"lift-down"`
	Compress    int `mapstructure:"compress"`
	CompressLow int `mapstructure:"compress-low"`
	Pump        int `mapstructure:"pump"`
	PumpLow     int `mapstructure:"pump-low"`
	PanLeft     int `mapstructure:"pan-left"`
	PanRight    int `mapstructure:"pan-right"`
	Pressure    int `mapstructure:"pressure"`
}

// DefaultPins returns the wiring of the reference build.
func DefaultPins() Pins {
	return Pins{
		LiftUp:      23,
		LiftDown:    22,
		Compress:    26,
		CompressLow: 20,
		Pump:        16,
		PumpLow:     21,
		PanLeft:     -1,
		PanRight:    -1,
		Pressure:    2,
	}
}

// Config configures a Device.
type Config struct {
	Pins       Pins
	PanEnabled bool
}

// Driver is a physical pin bank.
type Driver interface {
	Output(pin int, high bool) error
	Input(pin int) (bool, error)
	Close() error
}

// Device is the hardware interface driven by the sequencer and by operator
// jogs.
type Device struct {
	cfg    Config
	driver Driver

	faults atomic.Int64

	// mu guards only the last-commanded bookkeeping, not the pin writes.
	mu    sync.Mutex
	state map[Actuator]Value
}

// Open validates the role table and returns a device in the safe state.
func Open(cfg Config, driver Driver) (*Device, error) {
	if driver == nil {
		return nil, fmt.Errorf("hardware: nil driver")
	}
	if err := validatePins(cfg); err != nil {
		return nil, err
	}
	d := &Device{
		cfg:    cfg,
		driver: driver,
		state:  make(map[Actuator]Value, 4),
	}
	d.Reset()
	return d, nil
}

func validatePins(cfg Config) error {
	required := map[string]int{
		"lift-up":      cfg.Pins.LiftUp,
		"lift-down":    cfg.Pins.LiftDown,
		"compress":     cfg.Pins.Compress,
		"compress-low": cfg.Pins.CompressLow,
		"pump":         cfg.Pins.Pump,
		"pump-low":     cfg.Pins.PumpLow,
		"pressure":     cfg.Pins.Pressure,
	}
	if cfg.PanEnabled {
		required["pan-left"] = cfg.Pins.PanLeft
		required["pan-right"] = cfg.Pins.PanRight
	}

	seen := make(map[int]string, len(required))
	for role, pin := range required {
		if pin < 0 {
			return fmt.Errorf("hardware: pin %q is unassigned", role)
		}
		if other, dup := seen[pin]; dup {
			return fmt.Errorf("hardware: pin %d assigned to both %q and %q", pin, other, role)
		}
		seen[pin] = role
	}
	return nil
}

// Close forces the safe state and releases the driver.
func (d *Device) Close() error {
	d.Reset()
	return d.driver.Close()
}

// Reset forces every actuator to the safe state: lift up, compress off,
// pump off, pan off. It does not depend on the prior state and may race
// with an in-flight write; the last write wins.
func (d *Device) Reset() {
	d.SetActuator(CprLift, Up)
	d.SetActuator(CprCompress, Off)
	d.SetActuator(AirPump, Off)
	d.SetActuator(CameraPan, Stop)
}

// SetActuator issues a single physical write for the group.
func (d *Device) SetActuator(id Actuator, v Value) {
	var first, second int
	var firstHigh, secondHigh bool

	switch id {
	case CprLift:
		first, second = d.cfg.Pins.LiftUp, d.cfg.Pins.LiftDown
		switch v {
		case Up:
			firstHigh = true
		case Down:
			secondHigh = true
		case Stop:
		default:
			d.reject(id, v)
			return
		}
	case CprCompress, AirPump:
		first, second = d.cfg.Pins.Compress, d.cfg.Pins.CompressLow
		if id == AirPump {
			first, second = d.cfg.Pins.Pump, d.cfg.Pins.PumpLow
		}
		switch v {
		case On:
			firstHigh = true
		case Off:
		default:
			d.reject(id, v)
			return
		}
	case CameraPan:
		switch v {
		case Left, Right, Stop:
		default:
			d.reject(id, v)
			return
		}
		d.record(id, v)
		if !d.cfg.PanEnabled {
			return
		}
		first, second = d.cfg.Pins.PanLeft, d.cfg.Pins.PanRight
		firstHigh = v == Left
		secondHigh = v == Right
		d.write(id, first, firstHigh)
		d.write(id, second, secondHigh)
		return
	default:
		d.reject(id, v)
		return
	}

	d.record(id, v)
	d.write(id, first, firstHigh)
	d.write(id, second, secondHigh)
}

// ReadSensor performs one synchronous read. The pressure trigger is
// active-low: a low line reads as triggered. A failed read reports not
// triggered.
func (d *Device) ReadSensor(id Sensor) bool {
	if id != PressureTrigger {
		log.Printf("hardware: unknown sensor %s", id)
		return false
	}
	raw, err := d.driver.Input(d.cfg.Pins.Pressure)
	if err != nil {
		d.faults.Add(1)
		log.Printf("hardware: read %s pin %d: %v", id, d.cfg.Pins.Pressure, err)
		return false
	}
	return !raw
}

// State returns the last commanded value of every actuator group.
func (d *Device) State() map[Actuator]Value {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[Actuator]Value, len(d.state))
	for k, v := range d.state {
		out[k] = v
	}
	return out
}

// WriteFaults returns the number of failed pin operations since Open.
func (d *Device) WriteFaults() int64 {
	return d.faults.Load()
}

// PanEnabled reports whether camera pan writes reach the pins.
func (d *Device) PanEnabled() bool {
	return d.cfg.PanEnabled
}

func (d *Device) record(id Actuator, v Value) {
	d.mu.Lock()
	d.state[id] = v
	d.mu.Unlock()
}

func (d *Device) write(id Actuator, pin int, high bool) {
	if err := d.driver.Output(pin, high); err != nil {
		// TODO: surface write failures as fatal once the driver layer can
		// report them reliably on all backends.
		d.faults.Add(1)
		log.Printf("hardware: write %s pin %d: %v", id, pin, err)
	}
}

func (d *Device) reject(id Actuator, v Value) {
	log.Printf("hardware: %s does not accept %s", id, v)
}
