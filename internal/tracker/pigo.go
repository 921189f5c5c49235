package tracker

import (
	"fmt"
	"image"
	"os"
	"sort"

	pigo "github.com/esimov/pigo/core"
)

// PigoConfig configures the pixel-intensity cascade detector.
type PigoConfig struct {
	CascadePath  string
	MinSize      int
	MaxSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	IoUThreshold float64
	// MinScore discards detections below this cascade quality.
	MinScore float32
}

func (c PigoConfig) withDefaults() PigoConfig {
	if c.MinSize <= 0 {
		c.MinSize = 60
	}
	if c.MaxSize <= 0 {
		c.MaxSize = 600
	}
	if c.ShiftFactor <= 0 {
		c.ShiftFactor = 0.1
	}
	if c.ScaleFactor <= 0 {
		c.ScaleFactor = 1.1
	}
	if c.IoUThreshold <= 0 {
		c.IoUThreshold = 0.2
	}
	if c.MinScore <= 0 {
		c.MinScore = 5
	}
	return c
}

// PigoDetector finds frontal faces and estimates the nose tip from the
// detection box.
type PigoDetector struct {
	cfg        PigoConfig
	classifier *pigo.Pigo
}

// NewPigoDetector loads the cascade file.
func NewPigoDetector(cfg PigoConfig) (*PigoDetector, error) {
	cfg = cfg.withDefaults()
	data, err := os.ReadFile(cfg.CascadePath)
	if err != nil {
		return nil, fmt.Errorf("read cascade: %w", err)
	}
	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade %s: %w", cfg.CascadePath, err)
	}
	return &PigoDetector{cfg: cfg, classifier: classifier}, nil
}

// Detect returns faces ordered by score, best first.
func (d *PigoDetector) Detect(img image.Image) ([]Face, error) {
	b := img.Bounds()
	cols, rows := b.Dx(), b.Dy()
	params := pigo.CascadeParams{
		MinSize:     d.cfg.MinSize,
		MaxSize:     d.cfg.MaxSize,
		ShiftFactor: d.cfg.ShiftFactor,
		ScaleFactor: d.cfg.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(img),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, d.cfg.IoUThreshold)

	faces := make([]Face, 0, len(dets))
	for _, det := range dets {
		if det.Q < d.cfg.MinScore {
			continue
		}
		faces = append(faces, Face{
			NoseTip: noseTip(b.Min, det),
			Score:   det.Q,
		})
	}
	sort.Slice(faces, func(i, j int) bool { return faces[i].Score > faces[j].Score })
	return faces, nil
}

// noseTip sits slightly below the center of the detection box.
func noseTip(origin image.Point, det pigo.Detection) image.Point {
	return image.Pt(origin.X+det.Col, origin.Y+det.Row+det.Scale/10)
}

func (d *PigoDetector) Close() error {
	return nil
}
