package display

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/cprmachine/cprd/internal/protocol"
)

// ErrSoundNotFound is returned when a step's audio file is missing.
var ErrSoundNotFound = errors.New("display: sound file not found")

// CommandPlayer plays cues by running an external command with the audio
// path appended, e.g. "aplay -q". Playback never blocks the caller.
type CommandPlayer struct {
	argv     []string
	manifest *protocol.Manifest
}

// NewCommandPlayer returns a player. An empty command disables playback.
func NewCommandPlayer(command string, manifest *protocol.Manifest) *CommandPlayer {
	return &CommandPlayer{argv: strings.Fields(command), manifest: manifest}
}

// Play starts the cue for step.
func (p *CommandPlayer) Play(step int) error {
	if len(p.argv) == 0 || p.manifest == nil {
		return nil
	}
	media, err := p.manifest.Lookup(step)
	if err != nil {
		return err
	}
	if media.Audio == "" {
		return nil
	}
	if _, err := os.Stat(media.Audio); err != nil {
		return fmt.Errorf("%w: %s", ErrSoundNotFound, media.Audio)
	}

	args := append(append([]string(nil), p.argv[1:]...), media.Audio)
	cmd := exec.Command(p.argv[0], args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.argv[0], err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Printf("display: audio player exited: %v", err)
		}
	}()
	return nil
}
