package hardware

import (
	"errors"
	"sync"
)

// ErrSimWriteFailed is returned by a SimDriver told to fail writes.
var ErrSimWriteFailed = errors.New("hardware: simulated write failure")

// PinWrite is one recorded output operation.
type PinWrite struct {
	Pin  int
	High bool
}

// SimDriver is an in-memory pin bank for dry runs and tests. Unscripted
// inputs idle high.
type SimDriver struct {
	mu         sync.Mutex
	levels     map[int]bool
	writes     []PinWrite
	scripts    map[int]func(n int) bool
	reads      map[int]int
	failWrites bool
	closed     bool
}

// NewSimDriver returns an empty pin bank.
func NewSimDriver() *SimDriver {
	return &SimDriver{
		levels:  make(map[int]bool),
		scripts: make(map[int]func(int) bool),
		reads:   make(map[int]int),
	}
}

func (s *SimDriver) Output(pin int, high bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return ErrSimWriteFailed
	}
	s.levels[pin] = high
	s.writes = append(s.writes, PinWrite{Pin: pin, High: high})
	return nil
}

func (s *SimDriver) Input(pin int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.reads[pin]
	s.reads[pin] = n + 1
	if fn, ok := s.scripts[pin]; ok {
		return fn(n), nil
	}
	if level, ok := s.levels[pin]; ok {
		return level, nil
	}
	return true, nil
}

func (s *SimDriver) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// SetInput fixes the raw level an input pin reads.
func (s *SimDriver) SetInput(pin int, high bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scripts, pin)
	s.levels[pin] = high
}

// ScriptInput makes reads of pin return fn(n), where n counts prior reads.
func (s *SimDriver) ScriptInput(pin int, fn func(n int) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[pin] = fn
	s.reads[pin] = 0
}

// FailWrites makes every subsequent Output fail.
func (s *SimDriver) FailWrites(fail bool) {
	s.mu.Lock()
	s.failWrites = fail
	s.mu.Unlock()
}

// Level returns the last level written to pin.
func (s *SimDriver) Level(pin int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels[pin]
}

// Writes returns a copy of every recorded output.
func (s *SimDriver) Writes() []PinWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PinWrite(nil), s.writes...)
}

// Reads returns how many times pin has been read.
func (s *SimDriver) Reads(pin int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[pin]
}

// Closed reports whether Close was called.
func (s *SimDriver) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
