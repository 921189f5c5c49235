package sequencer

import (
	"context"
	"log"

	"github.com/cprmachine/cprd/internal/events"
	"github.com/cprmachine/cprd/internal/hardware"
	"github.com/cprmachine/cprd/internal/protocol"
)

// position pans the camera until the face is centered horizontally. It ends
// on alignment, timeout, stop, or when the tracker is not running; a missing
// tracker is logged and the run proceeds as if aligned. The pan is stopped
// and the tracker torn down on every exit path.
func (s *Sequencer) position(ctx context.Context) {
	if !s.cfg.AlignEnabled || s.newTracker == nil {
		log.Printf("sequencer: camera alignment disabled")
		s.sleep(s.t.SetupHold)
		return
	}

	_, span := s.cfg.Tracer.Start(ctx, "sequencer.align")
	defer span.End()

	tr, err := s.newTracker()
	if err != nil {
		log.Printf("sequencer: alignment unavailable: %v", err)
		span.RecordError(err)
		return
	}
	log.Printf("sequencer: camera alignment enabled")

	defer func() {
		s.hw.SetActuator(hardware.CameraPan, hardware.Stop)
		log.Printf("sequencer: stopping face tracker")
		tr.Stop()
		s.emit.Emit(events.DisplayStep(protocol.FirstStep))
		log.Printf("sequencer: face tracker stopped")
	}()

	start := s.cfg.Now()
	for !s.stopping() {
		if !tr.Running() {
			log.Printf("sequencer: alignment unavailable, tracker not running")
			span.AddEvent("tracker-unavailable")
			return
		}

		if frame, ok := tr.Frame(); ok {
			s.emit.Emit(events.PreviewFrame(frame))
		}

		now := s.cfg.Now()
		if now.Sub(start) > s.t.AlignTimeout {
			log.Printf("sequencer: face detection timeout")
			span.AddEvent("timeout")
			return
		}

		v, ok := tr.Vectors().Newest()
		if !ok {
			s.sleep(s.t.Tick)
			continue
		}
		s.recordAlignment(v)

		if v.NoFace || now.Sub(v.CapturedAt) > s.t.StaleAfter {
			s.hw.SetActuator(hardware.CameraPan, hardware.Stop)
			s.sleep(s.t.AlignTick)
			continue
		}

		x := -v.DX
		switch {
		case abs(x) < s.t.AlignDeadband:
			log.Printf("sequencer: camera aligned (dx=%d)", v.DX)
			span.AddEvent("aligned")
			return
		case x < 0:
			s.hw.SetActuator(hardware.CameraPan, hardware.Left)
		default:
			s.hw.SetActuator(hardware.CameraPan, hardware.Right)
		}
		s.sleep(s.t.AlignTick)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
