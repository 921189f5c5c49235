// Package display consumes sequencer events: it keeps the latest step,
// control label and preview frame for the status surfaces and hands audio
// cues to the player.
package display

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"log"
	"sync"

	"golang.org/x/image/draw"

	"github.com/cprmachine/cprd/internal/events"
	"github.com/cprmachine/cprd/internal/protocol"
)

// DefaultPreviewWidth bounds the width of encoded preview frames.
const DefaultPreviewWidth = 480

// AudioPlayer plays the audio cue for a step.
type AudioPlayer interface {
	Play(step int) error
}

// State is what the board currently shows.
type State struct {
	Step         int
	ControlLabel string
	LastAudio    int
	HasPreview   bool
}

// Board is the display collaborator. Rendering is best-effort: it keeps only
// the latest value of everything.
type Board struct {
	player AudioPlayer

	mu      sync.RWMutex
	state   State
	preview image.Image
}

// NewBoard returns a board showing the idle image. player may be nil.
func NewBoard(player AudioPlayer) *Board {
	return &Board{
		player: player,
		state:  State{Step: protocol.FirstStep, ControlLabel: "Start"},
	}
}

// Run applies events until ctx is done or ch is closed.
func (b *Board) Run(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			b.Apply(e)
		}
	}
}

// Apply renders one event.
func (b *Board) Apply(e events.Event) {
	switch e.Kind {
	case events.KindDisplayStep:
		b.mu.Lock()
		b.state.Step = e.Step
		b.mu.Unlock()
	case events.KindPlayAudio:
		b.mu.Lock()
		b.state.LastAudio = e.Step
		b.mu.Unlock()
		if b.player != nil {
			if err := b.player.Play(e.Step); err != nil {
				log.Printf("display: audio for step %d: %v", e.Step, err)
			}
		}
	case events.KindControlLabel:
		b.mu.Lock()
		b.state.ControlLabel = e.Label
		b.mu.Unlock()
	case events.KindPreviewFrame:
		if e.Frame == nil {
			return
		}
		b.mu.Lock()
		b.preview = e.Frame
		b.state.HasPreview = true
		b.mu.Unlock()
	}
}

// State returns what the board shows.
func (b *Board) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// PreviewJPEG encodes the latest preview frame, scaled down to maxWidth when
// wider. ok is false when no frame has been shown.
func (b *Board) PreviewJPEG(maxWidth int) (data []byte, ok bool, err error) {
	b.mu.RLock()
	frame := b.preview
	b.mu.RUnlock()
	if frame == nil {
		return nil, false, nil
	}
	if maxWidth <= 0 {
		maxWidth = DefaultPreviewWidth
	}

	src := frame.Bounds()
	out := frame
	if src.Dx() > maxWidth {
		h := src.Dy() * maxWidth / src.Dx()
		dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), frame, src, draw.Src, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: 80}); err != nil {
		return nil, false, err
	}
	return buf.Bytes(), true, nil
}
