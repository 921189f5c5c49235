package sequencer

import (
	"context"
	"log"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cprmachine/cprd/internal/events"
	"github.com/cprmachine/cprd/internal/hardware"
	"github.com/cprmachine/cprd/internal/model"
	"github.com/cprmachine/cprd/internal/protocol"
)

func (s *Sequencer) run(done chan struct{}) {
	defer close(done)

	ctx, span := s.cfg.Tracer.Start(context.Background(), "sequencer.run")
	defer span.End()

	start := s.cfg.Now()
	s.status.SetRunStart(&start)
	log.Printf("sequencer: run started")

	if s.cfg.IncludeSetup {
		s.runSteps(ctx, protocol.SetupPhase())
	}
	s.runSteps(ctx, protocol.FullSequence())

	cycles := 0
	for i := 0; i < s.cfg.MaxCycles; i++ {
		if s.stopping() {
			break
		}
		if i == s.cfg.FullRepeatAt {
			s.runSteps(ctx, protocol.FullSequence())
		} else {
			s.runSteps(ctx, protocol.CoreCycle())
		}
		cycles++
	}
	span.SetAttributes(attribute.Int("run.cycles", cycles))

	s.status.SetRunStart(nil)
	s.emit.Emit(events.DisplayStep(protocol.FirstStep))

	s.mu.Lock()
	stopped := s.stopRequested
	s.step = 0
	if s.state == model.StateRunning {
		s.state = model.StateStopped
	}
	s.mu.Unlock()

	if stopped {
		log.Printf("sequencer: run aborted after %d cycles", cycles)
		span.AddEvent("stopped")
		return
	}
	log.Printf("sequencer: run finished after %d cycles", cycles)
}

func (s *Sequencer) runSteps(ctx context.Context, steps []protocol.Step) {
	for _, step := range steps {
		if s.stopping() {
			return
		}
		s.execute(ctx, step)
	}
}

func (s *Sequencer) execute(ctx context.Context, step protocol.Step) {
	ctx, span := s.cfg.Tracer.Start(ctx, "sequencer.step", trace.WithAttributes(
		attribute.Int("step.id", step.ID),
		attribute.String("step.op", step.Op.String()),
	))
	defer span.End()

	s.setStep(step.ID)
	log.Printf("sequencer: running step %d (%s)", step.ID, step.Op)

	s.emit.Emit(events.DisplayStep(step.ID))
	s.emit.Emit(events.PlayAudio(step.ID))
	s.sleep(s.t.CueHold)

	switch step.Op {
	case protocol.TimedHold:
		if step.ID == protocol.LastStep {
			s.sleep(s.t.FinalHold)
		} else {
			s.sleep(s.t.SetupHold)
		}
	case protocol.CameraAlign:
		s.position(ctx)
	case protocol.AwaitConfirm:
		s.awaitConfirm()
	case protocol.Shock:
		s.status.IncrementShocks(1)
		s.sleep(s.t.ShockHold)
	case protocol.DescendUntilTriggered:
		s.descend()
	case protocol.Compress:
		s.compress()
	case protocol.Ventilate:
		s.ventilate()
	default:
		log.Printf("sequencer: step %d has unknown op %s", step.ID, step.Op)
	}
}

func (s *Sequencer) awaitConfirm() {
	s.emit.Emit(events.ControlLabel(LabelConfirm))
	for {
		s.mu.Lock()
		proceed := s.confirmReceived || s.stopRequested
		s.mu.Unlock()
		if proceed {
			break
		}
		s.sleep(s.t.Poll)
	}
	s.mu.Lock()
	s.confirmReceived = false
	s.mu.Unlock()
	s.emit.Emit(events.ControlLabel(LabelStart))
}

// descend lowers the lift until the pressure sensor triggers. The lift is
// stopped on every exit path.
func (s *Sequencer) descend() {
	s.hw.SetActuator(hardware.CprLift, hardware.Down)
	for !s.stopping() {
		if s.hw.ReadSensor(hardware.PressureTrigger) {
			log.Printf("sequencer: pressure sensor triggered")
			break
		}
		s.sleep(s.t.Poll)
	}
	s.hw.SetActuator(hardware.CprLift, hardware.Stop)
}

// compress runs one compression cycle. Stop shortens the holds but every
// actuator write still happens, so compress is never left on.
func (s *Sequencer) compress() {
	log.Printf("sequencer: cpr running")
	s.status.IncrementCprCycles(1)
	s.hw.SetActuator(hardware.CprCompress, hardware.On)
	s.sleep(s.t.CompressHold)
	s.hw.SetActuator(hardware.CprCompress, hardware.Off)
	s.hw.SetActuator(hardware.CprLift, hardware.Up)
	s.sleep(s.t.LiftSettle)
	s.hw.SetActuator(hardware.CprLift, hardware.Stop)
}

func (s *Sequencer) ventilate() {
	log.Printf("sequencer: ventilation running")
	s.status.IncrementVentilations(1)
	s.hw.SetActuator(hardware.AirPump, hardware.On)
	s.sleep(s.t.VentilateHold)
	s.hw.SetActuator(hardware.AirPump, hardware.Off)
	s.mu.Lock()
	s.confirmReceived = false
	s.mu.Unlock()
}
