// Package sequencer runs the resuscitation protocol against the hardware.
//
// The sequencer owns one run goroutine at a time. The operator side talks to
// it only through two mutex-guarded flags, stop and confirm, which every
// wait in the run goroutine polls at a short fixed interval. Stop is a
// best-effort join followed by an unconditional hardware reset, so shutdown
// never depends on the run goroutine cooperating in time.
package sequencer

import (
	"image"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/cprmachine/cprd/internal/events"
	"github.com/cprmachine/cprd/internal/hardware"
	"github.com/cprmachine/cprd/internal/model"
	"github.com/cprmachine/cprd/internal/protocol"
	"github.com/cprmachine/cprd/internal/tracker"
)

const tracerName = "github.com/cprmachine/cprd/internal/sequencer"

// Defaults for Config.
const (
	DefaultMaxCycles    = 100
	DefaultFullRepeatAt = 2
	DefaultJoinTimeout  = 5 * time.Second
)

// Control labels shown on the begin/confirm control.
const (
	LabelConfirm = "Shot!"
	LabelStart   = "Start"
)

// Hardware is the part of hardware.Device the sequencer drives.
type Hardware interface {
	Reset()
	SetActuator(id hardware.Actuator, v hardware.Value)
	ReadSensor(id hardware.Sensor) bool
}

// Status is the RunStatus collaborator.
type Status interface {
	IncrementShocks(n int)
	IncrementCprCycles(n int)
	IncrementVentilations(n int)
	SetRunStart(t *time.Time)
}

// AlignmentTracker is a running face tracker.
type AlignmentTracker interface {
	Running() bool
	Vectors() *tracker.VectorQueue
	Frame() (image.Image, bool)
	Stop()
}

// TrackerFactory starts a tracker for one position phase.
type TrackerFactory func() (AlignmentTracker, error)

// Config configures a Sequencer.
type Config struct {
	Timings      protocol.Timings
	AlignEnabled bool
	// IncludeSetup runs steps 1-7 once before the first full sequence.
	IncludeSetup bool
	MaxCycles    int
	// FullRepeatAt is the cycle index that runs the full sequence instead
	// of the core cycle. Negative disables it.
	FullRepeatAt int
	JoinTimeout  time.Duration
	Tracer       trace.Tracer
	Now          func() time.Time
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		Timings:      protocol.DefaultTimings(),
		MaxCycles:    DefaultMaxCycles,
		FullRepeatAt: DefaultFullRepeatAt,
		JoinTimeout:  DefaultJoinTimeout,
	}
}

func (c Config) withDefaults() Config {
	c.Timings = c.Timings.WithDefaults()
	if c.MaxCycles <= 0 {
		c.MaxCycles = DefaultMaxCycles
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = DefaultJoinTimeout
	}
	if c.Tracer == nil {
		c.Tracer = otel.Tracer(tracerName)
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Sequencer is the protocol state machine.
type Sequencer struct {
	cfg        Config
	t          protocol.Timings
	hw         Hardware
	status     Status
	emit       events.Emitter
	newTracker TrackerFactory

	mu              sync.Mutex
	state           model.SequencerState
	stopRequested   bool
	confirmReceived bool
	step            int
	alignment       *model.Alignment
	done            chan struct{}
}

// New returns an idle sequencer. newTracker may be nil when camera alignment
// is not available.
func New(cfg Config, hw Hardware, status Status, emit events.Emitter, newTracker TrackerFactory) *Sequencer {
	cfg = cfg.withDefaults()
	return &Sequencer{
		cfg:        cfg,
		t:          cfg.Timings,
		hw:         hw,
		status:     status,
		emit:       emit,
		newTracker: newTracker,
		state:      model.StateIdle,
	}
}

// Start begins a run from Idle or Stopped. While a run is active it acts as
// Confirm instead and never spawns a second run goroutine.
func (s *Sequencer) Start() {
	s.mu.Lock()
	switch s.state {
	case model.StateRunning:
		s.confirmReceived = true
		s.mu.Unlock()
		log.Printf("sequencer: start while running, treating as confirm")
		return
	case model.StateStopping:
		s.mu.Unlock()
		log.Printf("sequencer: start ignored while stopping")
		return
	}
	if s.done != nil && !closed(s.done) {
		s.mu.Unlock()
		log.Printf("sequencer: start ignored, previous run goroutine has not exited")
		return
	}

	s.stopRequested = false
	s.confirmReceived = false
	s.alignment = nil
	done := make(chan struct{})
	s.done = done
	s.state = model.StateRunning
	s.mu.Unlock()

	log.Printf("sequencer: starting run")
	s.hw.Reset()
	go s.run(done)
}

// Stop requests the run to end, waits up to the join timeout, then forces
// the hardware safe state and stops the camera pan whether or not the run
// goroutine exited. A stop already requested logs and returns.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	if s.stopRequested {
		s.mu.Unlock()
		log.Printf("sequencer: repeat stopping is not allowed")
		return
	}
	s.stopRequested = true
	done := s.done
	if s.state == model.StateRunning {
		s.state = model.StateStopping
	}
	s.mu.Unlock()
	log.Printf("sequencer: stop called, setting stop flag")

	if done != nil {
		log.Printf("sequencer: waiting for run goroutine")
		timer := time.NewTimer(s.cfg.JoinTimeout)
		select {
		case <-done:
			log.Printf("sequencer: run goroutine joined")
		case <-timer.C:
			log.Printf("sequencer: run goroutine did not exit within %s", s.cfg.JoinTimeout)
		}
		timer.Stop()
	}

	s.hw.Reset()
	s.hw.SetActuator(hardware.CameraPan, hardware.Stop)

	s.mu.Lock()
	s.confirmReceived = false
	s.state = model.StateStopped
	s.mu.Unlock()
	log.Printf("sequencer: reset complete")
}

// Confirm acknowledges the current checkpoint.
func (s *Sequencer) Confirm() {
	s.mu.Lock()
	s.confirmReceived = true
	s.mu.Unlock()
}

// State returns the lifecycle state.
func (s *Sequencer) State() model.SequencerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentStep returns the step id being executed, or 0 between runs.
func (s *Sequencer) CurrentStep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// LastAlignment returns the newest alignment vector seen in this run.
func (s *Sequencer) LastAlignment() *model.Alignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alignment == nil {
		return nil
	}
	a := *s.alignment
	return &a
}

// Wait blocks until the current run goroutine exits. It returns immediately
// when no run was started.
func (s *Sequencer) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (s *Sequencer) stopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopRequested
}

func (s *Sequencer) setStep(id int) {
	s.mu.Lock()
	s.step = id
	s.mu.Unlock()
}

func (s *Sequencer) recordAlignment(v tracker.AlignmentVector) {
	s.mu.Lock()
	s.alignment = &model.Alignment{DX: v.DX, DY: v.DY, NoFace: v.NoFace, CapturedAt: v.CapturedAt}
	s.mu.Unlock()
}

// sleep holds for d, returning early once stop is requested.
func (s *Sequencer) sleep(d time.Duration) {
	deadline := time.Now().Add(d)
	for !s.stopping() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		time.Sleep(min(remaining, s.t.Tick))
	}
}

func closed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
