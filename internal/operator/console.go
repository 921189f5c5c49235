// Package operator implements the operator control surface: run control
// through the sequencer and direct jogs of the lift and camera pan.
package operator

import (
	"errors"
	"fmt"
	"log"

	"github.com/cprmachine/cprd/internal/display"
	"github.com/cprmachine/cprd/internal/hardware"
	"github.com/cprmachine/cprd/internal/model"
	"github.com/cprmachine/cprd/internal/protocol"
)

// ErrInvalidDirection is returned for a jog direction the actuator does not
// accept.
var ErrInvalidDirection = errors.New("operator: invalid direction")

// Sequencer is the run control the console drives.
type Sequencer interface {
	Start()
	Stop()
	Confirm()
	State() model.SequencerState
	CurrentStep() int
	LastAlignment() *model.Alignment
}

// Hardware is the jog target.
type Hardware interface {
	SetActuator(id hardware.Actuator, v hardware.Value)
	WriteFaults() int64
}

// RunStatus reads the run counters.
type RunStatus interface {
	Snapshot() model.RunStatus
}

// Board reads what the display shows.
type Board interface {
	State() display.State
}

// Options wires a Console.
type Options struct {
	Sequencer Sequencer
	Hardware  Hardware
	Status    RunStatus
	Board     Board
	Backend   string
	// Dropped reports skipped event deliveries. Optional.
	Dropped func() int64
}

// Console is the in-process model.Operator.
type Console struct {
	opts Options
}

var _ model.Operator = (*Console)(nil)

// NewConsole returns a console over the given collaborators.
func NewConsole(opts Options) *Console {
	return &Console{opts: opts}
}

// Begin starts a run, or confirms the checkpoint while one is active.
func (c *Console) Begin() error {
	c.opts.Sequencer.Start()
	return nil
}

// HaltImmediately stops the run and forces the safe state.
func (c *Console) HaltImmediately() error {
	c.opts.Sequencer.Stop()
	return nil
}

func (c *Console) Confirm() error {
	c.opts.Sequencer.Confirm()
	return nil
}

// PanCamera starts panning. Jogs run on the caller's goroutine, independent
// of the sequencer.
func (c *Console) PanCamera(dir model.Direction) error {
	var v hardware.Value
	switch dir {
	case model.DirectionLeft:
		v = hardware.Left
	case model.DirectionRight:
		v = hardware.Right
	case model.DirectionStop:
		v = hardware.Stop
	default:
		return fmt.Errorf("%w: pan %q", ErrInvalidDirection, dir)
	}
	c.opts.Hardware.SetActuator(hardware.CameraPan, v)
	return nil
}

func (c *Console) PanCameraRelease() error {
	c.opts.Hardware.SetActuator(hardware.CameraPan, hardware.Stop)
	return nil
}

// LiftJog moves the lift. It is allowed during a run, but the sequencer
// owns the lift then, so a warning is logged.
func (c *Console) LiftJog(dir model.Direction) error {
	var v hardware.Value
	switch dir {
	case model.DirectionUp:
		v = hardware.Up
	case model.DirectionDown:
		v = hardware.Down
	case model.DirectionStop:
		v = hardware.Stop
	default:
		return fmt.Errorf("%w: lift %q", ErrInvalidDirection, dir)
	}
	if c.opts.Sequencer.State() == model.StateRunning {
		log.Printf("operator: lift jog %s while a run is active", dir)
	}
	c.opts.Hardware.SetActuator(hardware.CprLift, v)
	return nil
}

func (c *Console) LiftRelease() error {
	c.opts.Hardware.SetActuator(hardware.CprLift, hardware.Stop)
	return nil
}

// Status assembles the operator-facing snapshot.
func (c *Console) Status() (model.StatusSnapshot, error) {
	seq := c.opts.Sequencer
	snap := model.StatusSnapshot{
		State:       seq.State(),
		Step:        seq.CurrentStep(),
		Alignment:   seq.LastAlignment(),
		WriteFaults: c.opts.Hardware.WriteFaults(),
		Backend:     c.opts.Backend,
	}
	if c.opts.Status != nil {
		snap.Run = c.opts.Status.Snapshot()
	}
	if c.opts.Board != nil {
		bs := c.opts.Board.State()
		snap.ControlLabel = bs.ControlLabel
		snap.LastAudio = bs.LastAudio
		snap.HasPreview = bs.HasPreview
		if snap.Step == 0 {
			snap.Step = bs.Step
		}
	}
	if step, err := protocol.Lookup(snap.Step); err == nil {
		snap.StepTitle = step.Title
	}
	if c.opts.Dropped != nil {
		snap.DroppedEvents = c.opts.Dropped()
	}
	return snap, nil
}
