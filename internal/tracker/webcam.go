package tracker

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"strings"

	"github.com/blackjack/webcam"
)

const (
	mjpegFourCC        = webcam.PixelFormat(0x47504A4D) // 'MJPG'
	frameWaitTimeout   = 2
	defaultFrameWidth  = 640
	defaultFrameHeight = 480
)

var errFrameTimeout = errors.New("tracker: timed out waiting for frame")

// WebcamConfig selects a V4L2 capture device.
type WebcamConfig struct {
	Device string
	Width  int
	Height int
}

// WebcamOpener returns a CameraOpener for a V4L2 device streaming MJPEG.
func WebcamOpener(cfg WebcamConfig) CameraOpener {
	return func() (Camera, error) {
		return OpenWebcam(cfg)
	}
}

// Webcam is a V4L2 capture device decoded frame by frame.
type Webcam struct {
	cam *webcam.Webcam
}

// OpenWebcam opens the device and starts streaming.
func OpenWebcam(cfg WebcamConfig) (*Webcam, error) {
	if cfg.Device == "" {
		cfg.Device = "/dev/video0"
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = defaultFrameWidth, defaultFrameHeight
	}
	if _, err := os.Stat(cfg.Device); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}

	cam, err := webcam.Open(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Device, err)
	}

	format, ok := findMJPEG(cam.GetSupportedFormats())
	if !ok {
		cam.Close()
		return nil, fmt.Errorf("%s does not support MJPEG", cfg.Device)
	}
	if _, _, _, err := cam.SetImageFormat(format, uint32(cfg.Width), uint32(cfg.Height)); err != nil {
		cam.Close()
		return nil, fmt.Errorf("set format on %s: %w", cfg.Device, err)
	}
	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return nil, fmt.Errorf("start streaming on %s: %w", cfg.Device, err)
	}
	return &Webcam{cam: cam}, nil
}

func findMJPEG(formats map[webcam.PixelFormat]string) (webcam.PixelFormat, bool) {
	for f, name := range formats {
		if f == mjpegFourCC || strings.Contains(strings.ToUpper(name), "JPEG") {
			return f, true
		}
	}
	return 0, false
}

// Read waits for the next frame and decodes it.
func (w *Webcam) Read() (image.Image, error) {
	err := w.cam.WaitForFrame(frameWaitTimeout)
	switch err.(type) {
	case nil:
	case *webcam.Timeout:
		return nil, errFrameTimeout
	default:
		return nil, err
	}

	frame, err := w.cam.ReadFrame()
	if err != nil {
		return nil, err
	}
	if len(frame) == 0 {
		return nil, nil
	}
	return jpeg.Decode(bytes.NewReader(frame))
}

// Close stops streaming and releases the device.
func (w *Webcam) Close() error {
	if err := w.cam.StopStreaming(); err != nil {
		w.cam.Close()
		return err
	}
	return w.cam.Close()
}
