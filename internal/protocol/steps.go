// Package protocol defines the fixed resuscitation step table and the
// timings the sequencer runs it with.
package protocol

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownStep is returned for a step id outside the table.
var ErrUnknownStep = errors.New("protocol: unknown step")

// Op tags what a step does.
type Op int

const (
	TimedHold Op = iota
	CameraAlign
	AwaitConfirm
	Shock
	DescendUntilTriggered
	Compress
	Ventilate
)

func (o Op) String() string {
	switch o {
	case TimedHold:
		return "timed-hold"
	case CameraAlign:
		return "camera-align"
	case AwaitConfirm:
		return "await-confirm"
	case Shock:
		return "shock"
	case DescendUntilTriggered:
		return "descend-until-triggered"
	case Compress:
		return "compress"
	case Ventilate:
		return "ventilate"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Step is one immutable entry of the table.
type Step struct {
	ID    int
	Op    Op
	Title string
}

func (s Step) String() string {
	return fmt.Sprintf("%d %s", s.ID, s.Op)
}

// Step id boundaries of the protocol phases.
const (
	FirstStep    = 1
	SetupLast    = 7
	PositionStep = 8
	CoreFirst    = 11
	LastStep     = 14
)

var table = [...]Step{
	{ID: 1, Op: TimedHold, Title: "Check responsiveness"},
	{ID: 2, Op: TimedHold, Title: "Call for help"},
	{ID: 3, Op: TimedHold, Title: "Open airway"},
	{ID: 4, Op: TimedHold, Title: "Check breathing"},
	{ID: 5, Op: TimedHold, Title: "Expose chest"},
	{ID: 6, Op: TimedHold, Title: "Attach pads"},
	{ID: 7, Op: TimedHold, Title: "Stand clear"},
	{ID: 8, Op: CameraAlign, Title: "Align camera"},
	{ID: 9, Op: AwaitConfirm, Title: "Confirm shock"},
	{ID: 10, Op: Shock, Title: "Shock"},
	{ID: 11, Op: DescendUntilTriggered, Title: "Lower compressor"},
	{ID: 12, Op: Compress, Title: "Compress"},
	{ID: 13, Op: Ventilate, Title: "Ventilate"},
	{ID: 14, Op: TimedHold, Title: "Reassess"},
}

// Steps returns a copy of the full table in order.
func Steps() []Step {
	out := make([]Step, len(table))
	copy(out, table[:])
	return out
}

// Lookup returns the step with the given id.
func Lookup(id int) (Step, error) {
	if id < FirstStep || id > LastStep {
		return Step{}, fmt.Errorf("%w: %d", ErrUnknownStep, id)
	}
	return table[id-1], nil
}

// Range returns steps from..to inclusive.
func Range(from, to int) ([]Step, error) {
	if from < FirstStep || to > LastStep || from > to {
		return nil, fmt.Errorf("%w: range %d..%d", ErrUnknownStep, from, to)
	}
	out := make([]Step, 0, to-from+1)
	out = append(out, table[from-1:to]...)
	return out, nil
}

// SetupPhase is steps 1-7.
func SetupPhase() []Step {
	s, _ := Range(FirstStep, SetupLast)
	return s
}

// FullSequence is the position through hold steps, 8-14.
func FullSequence() []Step {
	s, _ := Range(PositionStep, LastStep)
	return s
}

// CoreCycle is the descend, compress, ventilate and hold steps, 11-14.
func CoreCycle() []Step {
	s, _ := Range(CoreFirst, LastStep)
	return s
}

// Timings holds every fixed duration of the protocol.
type Timings struct {
	// CueHold follows the display and audio cue of every step.
	CueHold       time.Duration `mapstructure:"cue-hold"`
	SetupHold     time.Duration `mapstructure:"setup-hold"`
	FinalHold     time.Duration `mapstructure:"final-hold"`
	ShockHold     time.Duration `mapstructure:"shock-hold"`
	CompressHold  time.Duration `mapstructure:"compress-hold"`
	LiftSettle    time.Duration `mapstructure:"lift-settle"`
	VentilateHold time.Duration `mapstructure:"ventilate-hold"`

	// Tick is the stop-flag polling interval inside holds.
	Tick time.Duration `mapstructure:"tick"`
	// Poll is the confirm and pressure sensor polling interval.
	Poll time.Duration `mapstructure:"poll"`

	AlignTick     time.Duration `mapstructure:"align-tick"`
	AlignTimeout  time.Duration `mapstructure:"align-timeout"`
	StaleAfter    time.Duration `mapstructure:"stale-after"`
	AlignDeadband int           `mapstructure:"align-deadband"`
}

// DefaultTimings returns the reference protocol timings.
func DefaultTimings() Timings {
	return Timings{
		CueHold:       time.Second,
		SetupHold:     time.Second,
		FinalHold:     time.Second,
		ShockHold:     time.Second,
		CompressHold:  23500 * time.Millisecond,
		LiftSettle:    2 * time.Second,
		VentilateHold: 1500 * time.Millisecond,
		Tick:          10 * time.Millisecond,
		Poll:          50 * time.Millisecond,
		AlignTick:     50 * time.Millisecond,
		AlignTimeout:  60 * time.Second,
		StaleAfter:    2 * time.Second,
		AlignDeadband: 10,
	}
}

// WithDefaults fills zero or negative fields from DefaultTimings.
func (t Timings) WithDefaults() Timings {
	d := DefaultTimings()
	fill := func(v *time.Duration, def time.Duration) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&t.CueHold, d.CueHold)
	fill(&t.SetupHold, d.SetupHold)
	fill(&t.FinalHold, d.FinalHold)
	fill(&t.ShockHold, d.ShockHold)
	fill(&t.CompressHold, d.CompressHold)
	fill(&t.LiftSettle, d.LiftSettle)
	fill(&t.VentilateHold, d.VentilateHold)
	fill(&t.Tick, d.Tick)
	fill(&t.Poll, d.Poll)
	fill(&t.AlignTick, d.AlignTick)
	fill(&t.AlignTimeout, d.AlignTimeout)
	fill(&t.StaleAfter, d.StaleAfter)
	if t.AlignDeadband <= 0 {
		t.AlignDeadband = d.AlignDeadband
	}
	return t
}
