// Package tracker runs the camera capture and face detection loop that feeds
// camera alignment.
//
// A Tracker owns one goroutine. Each iteration captures a frame, detects a
// face, stabilizes the nose tip and queues the offset from the focus point.
// Frames where no face is found queue an explicit no-face marker. Per-frame
// failures are logged and the loop continues.
package tracker

import (
	"errors"
	"image"
	"log"
	"sync"
	"time"

	"github.com/cprmachine/cprd/internal/stabilizer"
)

// ErrCameraUnavailable is returned by openers when no capture device exists.
var ErrCameraUnavailable = errors.New("tracker: camera unavailable")

// Defaults for Config.
const (
	DefaultFrameDelay  = time.Second / 60
	DefaultRetryDelay  = 100 * time.Millisecond
	DefaultJoinTimeout = 3 * time.Second
	frameLogInterval   = 100
)

// Camera is an open capture device.
type Camera interface {
	Read() (image.Image, error)
	Close() error
}

// CameraOpener opens the capture device. It is called on the tracker
// goroutine.
type CameraOpener func() (Camera, error)

// Face is one detection result.
type Face struct {
	NoseTip image.Point
	Score   float32
}

// Detector finds faces in a frame, best match first.
type Detector interface {
	Detect(img image.Image) ([]Face, error)
	Close() error
}

// Config configures a Tracker.
type Config struct {
	// FocusX and FocusY locate the target point as a fraction of the frame.
	FocusX      float64
	FocusY      float64
	Display     bool
	FrameDelay  time.Duration
	RetryDelay  time.Duration
	JoinTimeout time.Duration
	QueueSize   int
	Stabilizer  stabilizer.Params
	Now         func() time.Time
}

func (c Config) withDefaults() Config {
	if c.FocusX == 0 && c.FocusY == 0 {
		c.FocusX, c.FocusY = 0.5, 0.5
	}
	if c.FrameDelay <= 0 {
		c.FrameDelay = DefaultFrameDelay
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = DefaultJoinTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Tracker is a running capture loop.
type Tracker struct {
	cfg      Config
	open     CameraOpener
	detector Detector
	queue    *VectorQueue
	preview  previewSlot

	// stab and frames belong to the loop goroutine.
	stab   *stabilizer.Stabilizer
	frames int

	mu      sync.Mutex
	running bool
	cam     Camera

	camOnce  sync.Once
	detOnce  sync.Once
	stopOnce sync.Once
	done     chan struct{}
}

// Start launches the capture loop. The tracker reports running until Stop is
// called or the camera fails to open.
func Start(cfg Config, open CameraOpener, detector Detector) *Tracker {
	cfg = cfg.withDefaults()
	t := &Tracker{
		cfg:      cfg,
		open:     open,
		detector: detector,
		queue:    NewVectorQueue(cfg.QueueSize),
		stab:     stabilizer.New(cfg.Stabilizer),
		running:  true,
		done:     make(chan struct{}),
	}
	go t.run()
	return t
}

// Running reports whether the loop is active.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Tracker) setRunning(v bool) {
	t.mu.Lock()
	t.running = v
	t.mu.Unlock()
}

// Vectors returns the alignment vector queue.
func (t *Tracker) Vectors() *VectorQueue {
	return t.queue
}

// Frame takes the latest preview frame, if one is waiting.
func (t *Tracker) Frame() (image.Image, bool) {
	return t.preview.take()
}

// Done is closed when the loop goroutine has exited.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

func (t *Tracker) run() {
	defer close(t.done)

	log.Printf("tracker: starting camera")
	cam, err := t.open()
	if err != nil {
		log.Printf("tracker: error opening camera: %v", err)
		t.setRunning(false)
		return
	}

	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		_ = cam.Close()
		return
	}
	t.cam = cam
	t.mu.Unlock()
	log.Printf("tracker: camera open")

	for t.Running() {
		time.Sleep(t.iterate(cam))
	}

	log.Printf("tracker: loop exiting after %d frames", t.frames)
	t.releaseCamera()
}

// iterate processes one frame and returns how long the loop should yield
// before the next one. A recovered panic still yields the frame delay.
func (t *Tracker) iterate(cam Camera) (delay time.Duration) {
	delay = t.cfg.FrameDelay
	defer func() {
		if r := recover(); r != nil {
			log.Printf("tracker: error in processing loop: %v", r)
			delay = t.cfg.FrameDelay
		}
	}()

	frame, err := cam.Read()
	if err != nil || frame == nil {
		log.Printf("tracker: ignoring empty camera frame: %v", err)
		return t.cfg.RetryDelay
	}

	t.frames++
	if t.frames%frameLogInterval == 0 {
		log.Printf("tracker: processed %d frames", t.frames)
	}

	b := frame.Bounds()
	focus := image.Pt(
		b.Min.X+int(t.cfg.FocusX*float64(b.Dx())),
		b.Min.Y+int(t.cfg.FocusY*float64(b.Dy())),
	)

	faces, err := t.detector.Detect(frame)
	if err != nil {
		log.Printf("tracker: detection error: %v", err)
		return delay
	}

	var stabilized *image.Point
	if len(faces) > 0 {
		p := t.stab.Stabilize(faces[0].NoseTip)
		stabilized = &p
		t.queue.Push(AlignmentVector{
			DX:         focus.X - p.X,
			DY:         focus.Y - p.Y,
			CapturedAt: t.cfg.Now(),
		})
	} else {
		t.queue.Push(AlignmentVector{NoFace: true, CapturedAt: t.cfg.Now()})
	}

	if t.cfg.Display {
		t.preview.put(RenderOverlay(frame, stabilized, focus))
	}
	return delay
}

// Stop ends the loop, waits up to the join timeout, then releases the
// camera and the detector in that order. It is idempotent and safe to call
// while a capture is outstanding.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		log.Printf("tracker: stop called")
		t.setRunning(false)

		timer := time.NewTimer(t.cfg.JoinTimeout)
		defer timer.Stop()
		select {
		case <-t.done:
		case <-timer.C:
			log.Printf("tracker: loop did not exit within %s", t.cfg.JoinTimeout)
		}

		t.releaseCamera()
		t.closeDetector()
		log.Printf("tracker: stopped")
	})
}

func (t *Tracker) releaseCamera() {
	t.mu.Lock()
	cam := t.cam
	t.mu.Unlock()
	if cam == nil {
		return
	}
	t.camOnce.Do(func() {
		if err := cam.Close(); err != nil {
			log.Printf("tracker: error releasing camera: %v", err)
			return
		}
		log.Printf("tracker: camera released")
	})
}

func (t *Tracker) closeDetector() {
	if t.detector == nil {
		return
	}
	t.detOnce.Do(func() {
		if err := t.detector.Close(); err != nil {
			log.Printf("tracker: error closing detector: %v", err)
		}
	})
}
