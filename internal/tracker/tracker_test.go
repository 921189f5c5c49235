package tracker

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCamera struct {
	mu     sync.Mutex
	frame  image.Image
	reads  int
	closed int
	order  *[]string
}

func (c *fakeCamera) Read() (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	if c.frame == nil {
		return nil, errors.New("no frame")
	}
	return c.frame, nil
}

func (c *fakeCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	if c.order != nil {
		*c.order = append(*c.order, "camera")
	}
	return nil
}

func (c *fakeCamera) Closed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// blockingCamera holds Read until Close is called, like a V4L2 device
// waiting on a frame that never arrives.
type blockingCamera struct {
	release   chan struct{}
	closeOnce sync.Once
	order     *[]string
}

func newBlockingCamera(order *[]string) *blockingCamera {
	return &blockingCamera{release: make(chan struct{}), order: order}
}

func (c *blockingCamera) Read() (image.Image, error) {
	<-c.release
	return nil, errors.New("camera closed")
}

func (c *blockingCamera) Close() error {
	c.closeOnce.Do(func() {
		*c.order = append(*c.order, "camera")
		close(c.release)
	})
	return nil
}

type fakeDetector struct {
	mu      sync.Mutex
	faces   []Face
	explode bool
	calls   int
	closed  int
	order   *[]string
}

func (d *fakeDetector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *fakeDetector) Detect(image.Image) ([]Face, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.explode {
		panic("detector exploded")
	}
	return d.faces, nil
}

func (d *fakeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	if d.order != nil {
		*d.order = append(*d.order, "detector")
	}
	return nil
}

func blankFrame(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func fastConfig() Config {
	return Config{FrameDelay: time.Millisecond, RetryDelay: time.Millisecond, JoinTimeout: time.Second}
}

func openerFor(cam Camera) CameraOpener {
	return func() (Camera, error) { return cam, nil }
}

func TestVectorQueue_DropsOldest(t *testing.T) {
	q := NewVectorQueue(5)
	for i := 1; i <= 7; i++ {
		q.Push(AlignmentVector{DX: i})
	}

	require.Equal(t, 5, q.Len())
	var got []int
	for _, v := range q.Snapshot() {
		got = append(got, v.DX)
	}
	assert.Equal(t, []int{3, 4, 5, 6, 7}, got)

	newest, ok := q.Newest()
	require.True(t, ok)
	assert.Equal(t, 7, newest.DX)
	assert.Equal(t, 5, q.Len(), "Newest does not consume")

	oldest, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 3, oldest.DX)
	assert.Equal(t, 4, q.Len())
}

func TestVectorQueue_Empty(t *testing.T) {
	q := NewVectorQueue(0)
	assert.Equal(t, DefaultQueueSize, q.Cap())
	_, ok := q.Newest()
	assert.False(t, ok)
	_, ok = q.Pop()
	assert.False(t, ok)
	assert.Empty(t, q.Snapshot())
}

func TestTracker_OpenFailureReportsNotRunning(t *testing.T) {
	det := &fakeDetector{}
	tr := Start(fastConfig(), func() (Camera, error) { return nil, ErrCameraUnavailable }, det)

	select {
	case <-tr.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit")
	}
	assert.False(t, tr.Running())
	assert.Equal(t, 0, tr.Vectors().Len())

	tr.Stop()
	assert.Equal(t, 1, det.closed)
}

func TestTracker_QueuesOffsetFromFocus(t *testing.T) {
	cam := &fakeCamera{frame: blankFrame(200, 100)}
	det := &fakeDetector{faces: []Face{{NoseTip: image.Pt(80, 30), Score: 9}}}
	tr := Start(fastConfig(), openerFor(cam), det)
	defer tr.Stop()

	require.Eventually(t, func() bool { return tr.Vectors().Len() > 0 }, time.Second, time.Millisecond)
	v, ok := tr.Vectors().Newest()
	require.True(t, ok)
	assert.False(t, v.NoFace)
	assert.Equal(t, image.Pt(20, 20), v.Offset())
	assert.LessOrEqual(t, tr.Vectors().Len(), DefaultQueueSize)
}

func TestTracker_NoFaceMarker(t *testing.T) {
	cam := &fakeCamera{frame: blankFrame(64, 64)}
	tr := Start(fastConfig(), openerFor(cam), &fakeDetector{})
	defer tr.Stop()

	require.Eventually(t, func() bool { return tr.Vectors().Len() > 0 }, time.Second, time.Millisecond)
	v, _ := tr.Vectors().Newest()
	assert.True(t, v.NoFace)
}

func TestTracker_SurvivesPanicsAndEmptyFrames(t *testing.T) {
	cam := &fakeCamera{}
	det := &fakeDetector{explode: true}
	tr := Start(fastConfig(), openerFor(cam), det)
	defer tr.Stop()

	require.Eventually(t, func() bool {
		cam.mu.Lock()
		defer cam.mu.Unlock()
		return cam.reads >= 3
	}, time.Second, time.Millisecond)

	cam.mu.Lock()
	cam.frame = blankFrame(32, 32)
	cam.mu.Unlock()
	time.Sleep(10 * time.Millisecond)
	assert.True(t, tr.Running())
	assert.Equal(t, 0, tr.Vectors().Len())
}

func TestTracker_PanicsStillYieldFrameDelay(t *testing.T) {
	cam := &fakeCamera{frame: blankFrame(32, 32)}
	det := &fakeDetector{explode: true}
	cfg := fastConfig()
	cfg.FrameDelay = 10 * time.Millisecond
	tr := Start(cfg, openerFor(cam), det)

	window := 200 * time.Millisecond
	time.Sleep(window)
	tr.Stop()

	calls := det.Calls()
	assert.GreaterOrEqual(t, calls, 2, "loop keeps running after a panic")
	assert.LessOrEqual(t, calls, int(window/cfg.FrameDelay)+5, "loop must yield between frames")
}

func TestTracker_StopWhileReadBlocked(t *testing.T) {
	var order []string
	cam := newBlockingCamera(&order)
	det := &fakeDetector{order: &order}
	cfg := fastConfig()
	cfg.JoinTimeout = 50 * time.Millisecond
	tr := Start(cfg, openerFor(cam), det)

	require.Eventually(t, func() bool {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return tr.cam != nil
	}, time.Second, time.Millisecond)

	start := time.Now()
	tr.Stop()
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, cfg.JoinTimeout, "join waits for the timeout")
	assert.Less(t, elapsed, time.Second, "join is bounded")
	assert.False(t, tr.Running())
	assert.Equal(t, []string{"camera", "detector"}, order)

	select {
	case <-tr.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after the camera was released")
	}
}

func TestTracker_StopIsIdempotentAndOrdered(t *testing.T) {
	var order []string
	cam := &fakeCamera{frame: blankFrame(16, 16), order: &order}
	det := &fakeDetector{order: &order}
	tr := Start(fastConfig(), openerFor(cam), det)

	require.Eventually(t, func() bool { return tr.Vectors().Len() > 0 }, time.Second, time.Millisecond)
	tr.Stop()
	tr.Stop()

	assert.False(t, tr.Running())
	assert.Equal(t, 1, cam.Closed())
	assert.Equal(t, []string{"camera", "detector"}, order)
}

func TestTracker_PreviewOnlyWhenDisplayEnabled(t *testing.T) {
	cam := &fakeCamera{frame: blankFrame(40, 40)}
	det := &fakeDetector{faces: []Face{{NoseTip: image.Pt(10, 10)}}}

	tr := Start(fastConfig(), openerFor(cam), det)
	require.Eventually(t, func() bool { return tr.Vectors().Len() > 0 }, time.Second, time.Millisecond)
	_, ok := tr.Frame()
	assert.False(t, ok)
	tr.Stop()

	cfg := fastConfig()
	cfg.Display = true
	tr = Start(cfg, openerFor(&fakeCamera{frame: blankFrame(40, 40)}), det)
	defer tr.Stop()
	require.Eventually(t, func() bool {
		img, ok := tr.Frame()
		return ok && img.Bounds().Dx() == 40
	}, time.Second, time.Millisecond)
}

func TestRenderOverlay(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 100, 100))
	p := image.Pt(20, 20)

	out := RenderOverlay(frame, &p, image.Pt(50, 50))

	marker := out.RGBAAt(20, 20)
	assert.Greater(t, marker.G, uint8(200), "marker")
	assert.Less(t, marker.R, uint8(50), "marker")

	arrow := out.RGBAAt(35, 35)
	assert.Greater(t, arrow.R, uint8(200), "arrow")
	assert.Less(t, arrow.G, uint8(50), "arrow")

	assert.Equal(t, color.RGBA{}, frame.RGBAAt(20, 20), "input untouched")
}

func TestRenderOverlay_NoFace(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 100, 100))
	out := RenderOverlay(frame, nil, image.Pt(50, 50))
	assert.Equal(t, color.RGBA{}, out.RGBAAt(50, 50))
}
