package model

import "time"

// SequencerState is the lifecycle state of the protocol sequencer.
type SequencerState string

const (
	StateIdle     SequencerState = "idle"
	StateRunning  SequencerState = "running"
	StateStopping SequencerState = "stopping"
	StateStopped  SequencerState = "stopped"
)

// Direction is an operator jog direction.
type Direction string

const (
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
	DirectionStop  Direction = "stop"
)

// Counters are the cumulative run counters shown on the status page.
type Counters struct {
	Shocks       int64 `json:"shocks"`
	CprCycles    int64 `json:"cpr_cycles"`
	Ventilations int64 `json:"ventilations"`
}

// RunStatus is a point-in-time copy of the run counters.
// RunStart is nil while no run is active.
type RunStatus struct {
	Counters
	RunStart *time.Time `json:"run_start,omitempty"`
	RunID    string     `json:"run_id,omitempty"`
}

// Alignment is the most recent alignment vector seen by the sequencer.
type Alignment struct {
	DX         int       `json:"dx"`
	DY         int       `json:"dy"`
	NoFace     bool      `json:"no_face"`
	CapturedAt time.Time `json:"captured_at"`
}

// StatusSnapshot is the full operator-facing view of the device.
// It is the canonical type for transport (socket RPC, HTTP) and display.
type StatusSnapshot struct {
	State         SequencerState `json:"state"`
	Step          int            `json:"step"`
	StepTitle     string         `json:"step_title,omitempty"`
	ControlLabel  string         `json:"control_label"`
	LastAudio     int            `json:"last_audio"`
	Run           RunStatus      `json:"run"`
	Alignment     *Alignment     `json:"alignment,omitempty"`
	WriteFaults   int64          `json:"write_faults"`
	Backend       string         `json:"backend"`
	HasPreview    bool           `json:"has_preview"`
	DroppedEvents int64          `json:"dropped_events"`
}
