package hardware

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// GPIODriver drives header pins directly through periph.io.
type GPIODriver struct {
	mu     sync.Mutex
	pins   map[int]gpio.PinIO
	inputs map[int]bool
}

// OpenGPIO initializes the host drivers.
func OpenGPIO() (*GPIODriver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("hardware: gpio host init: %w", err)
	}
	return &GPIODriver{
		pins:   make(map[int]gpio.PinIO),
		inputs: make(map[int]bool),
	}, nil
}

func (g *GPIODriver) pin(n int) (gpio.PinIO, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.pins[n]; ok {
		return p, nil
	}
	p := gpioreg.ByName(fmt.Sprintf("GPIO%d", n))
	if p == nil {
		return nil, fmt.Errorf("hardware: no such gpio pin %d", n)
	}
	g.pins[n] = p
	return p, nil
}

// Output drives the pin as an output.
func (g *GPIODriver) Output(n int, high bool) error {
	p, err := g.pin(n)
	if err != nil {
		return err
	}
	level := gpio.Low
	if high {
		level = gpio.High
	}
	return p.Out(level)
}

// Input reads the pin, configuring it as a pulled-up input on first use.
func (g *GPIODriver) Input(n int) (bool, error) {
	p, err := g.pin(n)
	if err != nil {
		return false, err
	}
	g.mu.Lock()
	configured := g.inputs[n]
	g.mu.Unlock()
	if !configured {
		if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return false, fmt.Errorf("hardware: configure input %d: %w", n, err)
		}
		g.mu.Lock()
		g.inputs[n] = true
		g.mu.Unlock()
	}
	return p.Read() == gpio.High, nil
}

// Close releases every pin that was driven as an output.
func (g *GPIODriver) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for n, p := range g.pins {
		if g.inputs[n] {
			continue
		}
		_ = p.Halt()
	}
	g.pins = make(map[int]gpio.PinIO)
	g.inputs = make(map[int]bool)
	return nil
}
