package sequencer

import (
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cprmachine/cprd/internal/events"
	"github.com/cprmachine/cprd/internal/hardware"
	"github.com/cprmachine/cprd/internal/model"
	"github.com/cprmachine/cprd/internal/protocol"
	"github.com/cprmachine/cprd/internal/status"
	"github.com/cprmachine/cprd/internal/tracker"
)

type actuation struct {
	ID    hardware.Actuator
	Value hardware.Value
}

type fakeHardware struct {
	mu           sync.Mutex
	calls        []actuation
	resets       int
	reads        int
	triggerAfter int
	// block, when set, holds the matching actuation until the channel closes.
	block      *actuation
	blockUntil chan struct{}
}

func (h *fakeHardware) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resets++
}

func (h *fakeHardware) SetActuator(id hardware.Actuator, v hardware.Value) {
	h.mu.Lock()
	h.calls = append(h.calls, actuation{id, v})
	block := h.block != nil && *h.block == (actuation{id, v})
	h.mu.Unlock()
	if block {
		<-h.blockUntil
	}
}

func (h *fakeHardware) ReadSensor(hardware.Sensor) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reads++
	return h.triggerAfter > 0 && h.reads >= h.triggerAfter
}

func (h *fakeHardware) Calls() []actuation {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]actuation(nil), h.calls...)
}

func (h *fakeHardware) Resets() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.resets
}

func (h *fakeHardware) callsFor(id hardware.Actuator) []hardware.Value {
	var out []hardware.Value
	for _, c := range h.Calls() {
		if c.ID == id {
			out = append(out, c.Value)
		}
	}
	return out
}

func fastTimings() protocol.Timings {
	ms := time.Millisecond
	return protocol.Timings{
		CueHold:       ms,
		SetupHold:     ms,
		FinalHold:     ms,
		ShockHold:     ms,
		CompressHold:  ms,
		LiftSettle:    ms,
		VentilateHold: ms,
		Tick:          ms,
		Poll:          ms,
		AlignTick:     ms,
		AlignTimeout:  time.Second,
		StaleAfter:    2 * time.Second,
		AlignDeadband: 10,
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Timings = fastTimings()
	cfg.JoinTimeout = time.Second
	return cfg
}

func waitForStep(t *testing.T, s *Sequencer, id int) {
	t.Helper()
	require.Eventually(t, func() bool { return s.CurrentStep() == id }, 2*time.Second, time.Millisecond)
}

func drain(ch <-chan events.Event) []events.Event {
	var out []events.Event
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestStart_ResetsAndRuns(t *testing.T) {
	hw := &fakeHardware{triggerAfter: 1}
	s := New(testConfig(), hw, status.NewRecorder(), events.NewBus(), nil)
	assert.Equal(t, model.StateIdle, s.State())

	s.Start()
	defer s.Stop()

	assert.Equal(t, model.StateRunning, s.State())
	assert.Equal(t, 1, hw.Resets())
	waitForStep(t, s, 9)
}

func TestStart_WhileRunningConfirms(t *testing.T) {
	hw := &fakeHardware{triggerAfter: 1}
	s := New(testConfig(), hw, status.NewRecorder(), events.NewBus(), nil)
	s.Start()
	defer s.Stop()

	waitForStep(t, s, 9)
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 9, s.CurrentStep(), "blocked at the checkpoint")

	s.Start()
	require.Eventually(t, func() bool { return s.CurrentStep() > 9 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, model.StateRunning, s.State())
	assert.Equal(t, 1, hw.Resets(), "no second run")
}

func TestStop_TwiceHasOneSideEffectAndNoSecondJoin(t *testing.T) {
	hw := &fakeHardware{triggerAfter: 1}
	s := New(testConfig(), hw, status.NewRecorder(), events.NewBus(), nil)
	s.Start()
	waitForStep(t, s, 9)

	s.Stop()
	assert.Equal(t, model.StateStopped, s.State())
	resets, calls := hw.Resets(), len(hw.Calls())
	assert.Equal(t, 2, resets, "start reset plus stop reset")
	assert.Equal(t, []hardware.Value{hardware.Stop}, hw.callsFor(hardware.CameraPan))

	s.Stop()
	assert.Equal(t, resets, hw.Resets())
	assert.Len(t, hw.Calls(), calls)
	assert.Equal(t, model.StateStopped, s.State())
}

func TestStop_ForcesSafeStateWhenJoinTimesOut(t *testing.T) {
	stuck := actuation{hardware.CprCompress, hardware.On}
	hw := &fakeHardware{triggerAfter: 1, block: &stuck, blockUntil: make(chan struct{})}
	cfg := testConfig()
	cfg.JoinTimeout = 30 * time.Millisecond
	s := New(cfg, hw, status.NewRecorder(), events.NewBus(), nil)

	s.Start()
	waitForStep(t, s, 9)
	s.Confirm()
	waitForStep(t, s, 12)
	require.Eventually(t, func() bool {
		vals := hw.callsFor(hardware.CprCompress)
		return len(vals) > 0 && vals[len(vals)-1] == hardware.On
	}, time.Second, time.Millisecond)

	s.Stop()
	assert.Equal(t, 2, hw.Resets(), "reset issued although the run goroutine is stuck")
	assert.Equal(t, model.StateStopped, s.State())

	begin := time.Now()
	s.Stop()
	assert.Less(t, time.Since(begin), cfg.JoinTimeout, "second stop does not join")

	s.Start()
	assert.Equal(t, 2, hw.Resets(), "no new run while the old goroutine is alive")

	close(hw.blockUntil)
	s.Wait()
}

func TestDescend_StopsOnceAfterTrigger(t *testing.T) {
	hw := &fakeHardware{triggerAfter: 3}
	s := New(testConfig(), hw, status.NewRecorder(), events.NewBus(), nil)

	s.descend()

	assert.Equal(t, []actuation{
		{hardware.CprLift, hardware.Down},
		{hardware.CprLift, hardware.Stop},
	}, hw.Calls())
	assert.Equal(t, 3, hw.reads)
}

func TestDescend_StopsLiftOnAbort(t *testing.T) {
	hw := &fakeHardware{}
	s := New(testConfig(), hw, status.NewRecorder(), events.NewBus(), nil)
	go func() {
		time.Sleep(5 * time.Millisecond)
		s.mu.Lock()
		s.stopRequested = true
		s.mu.Unlock()
	}()

	s.descend()

	assert.Equal(t, []hardware.Value{hardware.Down, hardware.Stop}, hw.callsFor(hardware.CprLift))
}

func TestStopDuringCompressHold_LeavesCompressOff(t *testing.T) {
	sim := hardware.NewSimDriver()
	pins := hardware.DefaultPins()
	dev, err := hardware.Open(hardware.Config{Pins: pins}, sim)
	require.NoError(t, err)
	sim.SetInput(pins.Pressure, false)

	cfg := testConfig()
	cfg.Timings.CompressHold = time.Minute
	s := New(cfg, dev, status.NewRecorder(), events.NewBus(), nil)

	s.Start()
	waitForStep(t, s, 9)
	s.Confirm()
	waitForStep(t, s, 12)
	require.Eventually(t, func() bool { return sim.Level(pins.Compress) }, time.Second, time.Millisecond)

	// Raise the flag without the reset Stop would add, so only the run
	// goroutine's own writes are observed.
	s.mu.Lock()
	s.stopRequested = true
	s.mu.Unlock()
	s.Wait()

	assert.False(t, sim.Level(pins.Compress))
	assert.Equal(t, hardware.Off, dev.State()[hardware.CprCompress])
	assert.Equal(t, hardware.Stop, dev.State()[hardware.CprLift])
}

func TestAwaitConfirm_LabelHandshake(t *testing.T) {
	bus := events.NewBus()
	ch, cancel := bus.Subscribe(16)
	defer cancel()
	s := New(testConfig(), &fakeHardware{}, status.NewRecorder(), bus, nil)
	s.Confirm()

	s.awaitConfirm()

	got := drain(ch)
	require.Len(t, got, 2)
	assert.Equal(t, events.ControlLabel(LabelConfirm), got[0])
	assert.Equal(t, events.ControlLabel(LabelStart), got[1])
	s.mu.Lock()
	assert.False(t, s.confirmReceived, "flag cleared on exit")
	s.mu.Unlock()
}

func TestRun_NaturalCompletion(t *testing.T) {
	hw := &fakeHardware{triggerAfter: 1}
	rec := status.NewRecorder()
	bus := events.NewBus()
	ch, cancel := bus.Subscribe(512)
	defer cancel()

	cfg := testConfig()
	cfg.MaxCycles = 2
	cfg.FullRepeatAt = 1
	s := New(cfg, hw, rec, bus, nil)

	var stopConfirm atomic.Bool
	go func() {
		for !stopConfirm.Load() {
			if s.CurrentStep() == 9 {
				s.Confirm()
			}
			time.Sleep(time.Millisecond)
		}
	}()
	defer stopConfirm.Store(true)

	s.Start()
	s.Wait()

	assert.Equal(t, model.StateStopped, s.State())
	assert.Equal(t, 0, s.CurrentStep())

	snap := rec.Snapshot()
	assert.Equal(t, int64(2), snap.Shocks)
	assert.Equal(t, int64(3), snap.CprCycles)
	assert.Equal(t, int64(3), snap.Ventilations)
	assert.Nil(t, snap.RunStart)
	assert.NotEmpty(t, snap.RunID)

	got := drain(ch)
	require.NotEmpty(t, got)
	assert.Equal(t, events.DisplayStep(protocol.FirstStep), got[len(got)-1])

	var displayed []int
	for _, e := range got {
		if e.Kind == events.KindDisplayStep {
			displayed = append(displayed, e.Step)
		}
	}
	want := []int{8, 9, 10, 11, 12, 13, 14, 11, 12, 13, 14, 8, 9, 10, 11, 12, 13, 14, 1}
	assert.Equal(t, want, displayed)
}

func TestRun_IncludeSetup(t *testing.T) {
	hw := &fakeHardware{triggerAfter: 1}
	bus := events.NewBus()
	ch, cancel := bus.Subscribe(64)
	defer cancel()

	cfg := testConfig()
	cfg.IncludeSetup = true
	s := New(cfg, hw, status.NewRecorder(), bus, nil)
	s.Start()
	waitForStep(t, s, 9)
	s.Stop()

	var displayed []int
	for _, e := range drain(ch) {
		if e.Kind == events.KindDisplayStep {
			displayed = append(displayed, e.Step)
		}
	}
	require.GreaterOrEqual(t, len(displayed), 9)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, displayed[:9])
}

type fakeTracker struct {
	queue   *tracker.VectorQueue
	running atomic.Bool
	stops   atomic.Int32
	frame   image.Image
}

func newFakeTracker() *fakeTracker {
	ft := &fakeTracker{queue: tracker.NewVectorQueue(5)}
	ft.running.Store(true)
	return ft
}

func (f *fakeTracker) Running() bool                 { return f.running.Load() }
func (f *fakeTracker) Vectors() *tracker.VectorQueue { return f.queue }
func (f *fakeTracker) Stop()                         { f.stops.Add(1) }
func (f *fakeTracker) Frame() (image.Image, bool)    { return f.frame, f.frame != nil }

func alignSequencer(hw *fakeHardware, ft *fakeTracker, bus *events.Bus) *Sequencer {
	cfg := testConfig()
	cfg.AlignEnabled = true
	return New(cfg, hw, status.NewRecorder(), bus, func() (AlignmentTracker, error) { return ft, nil })
}

func TestPosition_AlignedWithinDeadband(t *testing.T) {
	hw := &fakeHardware{}
	ft := newFakeTracker()
	ft.queue.Push(tracker.AlignmentVector{DX: 5, DY: 40, CapturedAt: time.Now()})
	bus := events.NewBus()
	ch, cancel := bus.Subscribe(16)
	defer cancel()
	s := alignSequencer(hw, ft, bus)

	s.position(t.Context())

	assert.Equal(t, []hardware.Value{hardware.Stop}, hw.callsFor(hardware.CameraPan))
	assert.Equal(t, int32(1), ft.stops.Load())
	got := drain(ch)
	require.NotEmpty(t, got)
	assert.Equal(t, events.DisplayStep(protocol.FirstStep), got[len(got)-1])
	require.NotNil(t, s.LastAlignment())
	assert.Equal(t, 5, s.LastAlignment().DX)
}

func TestPosition_PansTowardFace(t *testing.T) {
	cases := []struct {
		name string
		dx   int
		want hardware.Value
	}{
		{"face left of focus", 40, hardware.Left},
		{"face right of focus", -40, hardware.Right},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hw := &fakeHardware{}
			ft := newFakeTracker()
			ft.queue.Push(tracker.AlignmentVector{DX: tc.dx, CapturedAt: time.Now()})
			s := alignSequencer(hw, ft, events.NewBus())

			done := make(chan struct{})
			go func() {
				s.position(t.Context())
				close(done)
			}()

			require.Eventually(t, func() bool {
				vals := hw.callsFor(hardware.CameraPan)
				return len(vals) > 0 && vals[0] == tc.want
			}, time.Second, time.Millisecond)

			ft.queue.Push(tracker.AlignmentVector{DX: 0, CapturedAt: time.Now()})
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("alignment did not finish")
			}

			vals := hw.callsFor(hardware.CameraPan)
			assert.Equal(t, hardware.Stop, vals[len(vals)-1])
			for _, v := range vals[:len(vals)-1] {
				assert.Equal(t, tc.want, v)
			}
		})
	}
}

func TestPosition_StaleAndNoFaceStopPanUntilTimeout(t *testing.T) {
	for name, v := range map[string]tracker.AlignmentVector{
		"stale":   {DX: 100, CapturedAt: time.Now().Add(-3 * time.Second)},
		"no face": {NoFace: true, CapturedAt: time.Now()},
	} {
		t.Run(name, func(t *testing.T) {
			hw := &fakeHardware{}
			ft := newFakeTracker()
			ft.queue.Push(v)
			cfg := testConfig()
			cfg.AlignEnabled = true
			cfg.Timings.AlignTimeout = 30 * time.Millisecond
			s := New(cfg, hw, status.NewRecorder(), events.NewBus(), func() (AlignmentTracker, error) { return ft, nil })

			s.position(t.Context())

			vals := hw.callsFor(hardware.CameraPan)
			require.NotEmpty(t, vals)
			for _, got := range vals {
				assert.Equal(t, hardware.Stop, got)
			}
			assert.Equal(t, int32(1), ft.stops.Load())
		})
	}
}

func TestPosition_TrackerUnavailableProceeds(t *testing.T) {
	hw := &fakeHardware{}
	ft := newFakeTracker()
	ft.running.Store(false)
	s := alignSequencer(hw, ft, events.NewBus())

	s.position(t.Context())

	assert.Equal(t, int32(1), ft.stops.Load())
	assert.Equal(t, []hardware.Value{hardware.Stop}, hw.callsFor(hardware.CameraPan))
}

func TestPosition_ForwardsPreviewFrames(t *testing.T) {
	ft := newFakeTracker()
	ft.frame = image.NewRGBA(image.Rect(0, 0, 4, 4))
	ft.queue.Push(tracker.AlignmentVector{CapturedAt: time.Now()})
	bus := events.NewBus()
	ch, cancel := bus.Subscribe(16)
	defer cancel()

	alignSequencer(&fakeHardware{}, ft, bus).position(t.Context())

	got := drain(ch)
	require.NotEmpty(t, got)
	assert.Equal(t, events.KindPreviewFrame, got[0].Kind)
}
