package model

// Operator is the operator control surface. Commands are independent of the
// sequencer's run goroutine; Begin doubles as the checkpoint acknowledgement
// while a run is active.
type Operator interface {
	Begin() error
	HaltImmediately() error
	Confirm() error
	PanCamera(dir Direction) error
	PanCameraRelease() error
	LiftJog(dir Direction) error
	LiftRelease() error
	Status() (StatusSnapshot, error)
}

// StatusSource provides read-only status for display surfaces.
type StatusSource interface {
	Status() (StatusSnapshot, error)
}
