package protocol

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSteps_TableShape(t *testing.T) {
	steps := Steps()
	require.Len(t, steps, LastStep)
	for i, s := range steps {
		assert.Equal(t, i+1, s.ID)
	}
	for _, s := range SetupPhase() {
		assert.Equal(t, TimedHold, s.Op, "step %d", s.ID)
	}

	want := []Op{CameraAlign, AwaitConfirm, Shock, DescendUntilTriggered, Compress, Ventilate, TimedHold}
	var got []Op
	for _, s := range FullSequence() {
		got = append(got, s.Op)
	}
	assert.Equal(t, want, got)

	core := CoreCycle()
	require.Len(t, core, 4)
	assert.Equal(t, 11, core[0].ID)
	assert.Equal(t, 14, core[3].ID)
}

func TestSteps_CopyIsIsolated(t *testing.T) {
	s := Steps()
	s[0].Op = Shock
	first, err := Lookup(1)
	require.NoError(t, err)
	assert.Equal(t, TimedHold, first.Op)
}

func TestLookup_Unknown(t *testing.T) {
	for _, id := range []int{0, 15, -1} {
		_, err := Lookup(id)
		assert.True(t, errors.Is(err, ErrUnknownStep), "id %d", id)
	}
	_, err := Range(11, 8)
	assert.True(t, errors.Is(err, ErrUnknownStep))
}

func TestTimings_WithDefaults(t *testing.T) {
	got := Timings{CompressHold: time.Millisecond}.WithDefaults()
	assert.Equal(t, time.Millisecond, got.CompressHold)
	assert.Equal(t, 50*time.Millisecond, got.Poll)
	assert.Equal(t, 10, got.AlignDeadband)
	assert.Equal(t, DefaultTimings(), Timings{}.WithDefaults())
}

func TestDefaultManifest(t *testing.T) {
	m := DefaultManifest("/opt/cprd/resources")
	media, err := m.Lookup(3)
	require.NoError(t, err)
	assert.Equal(t, "/opt/cprd/resources/3.png", media.Image)
	assert.Equal(t, "/opt/cprd/resources/3.wav", media.Audio)
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "media.yml")
	body := "dir: media\nsteps:\n  9:\n    image: shock.png\n    audio: /usr/share/cprd/shock.wav\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	m, err := LoadManifest(path)
	require.NoError(t, err)

	media, err := m.Lookup(9)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "media", "shock.png"), media.Image)
	assert.Equal(t, "/usr/share/cprd/shock.wav", media.Audio)

	media, err = m.Lookup(12)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "media", "12.png"), media.Image)
}

func TestLoadManifest_RejectsUnknownStep(t *testing.T) {
	path := filepath.Join(t.TempDir(), "media.yml")
	require.NoError(t, os.WriteFile(path, []byte("steps:\n  20:\n    image: x.png\n"), 0o644))

	_, err := LoadManifest(path)
	assert.True(t, errors.Is(err, ErrUnknownStep))
}

func TestLoadManifest_RejectsUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "media.yml")
	require.NoError(t, os.WriteFile(path, []byte("stepz: {}\n"), 0o644))

	_, err := LoadManifest(path)
	assert.Error(t, err)
}
