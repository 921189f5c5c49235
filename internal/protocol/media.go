package protocol

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Media is the image and audio cue for one step.
type Media struct {
	Image string `yaml:"image"`
	Audio string `yaml:"audio,omitempty"`
}

// Manifest maps step ids to their media cues.
type Manifest struct {
	// Dir is the base for relative paths. Defaults to the manifest's own
	// directory.
	Dir   string        `yaml:"dir,omitempty"`
	Steps map[int]Media `yaml:"steps"`
}

// DefaultManifest lays out <dir>/<n>.png and <dir>/<n>.wav for every step.
func DefaultManifest(dir string) *Manifest {
	m := &Manifest{Dir: dir, Steps: make(map[int]Media, LastStep)}
	for id := FirstStep; id <= LastStep; id++ {
		n := strconv.Itoa(id)
		m.Steps[id] = Media{Image: n + ".png", Audio: n + ".wav"}
	}
	return m
}

// LoadManifest reads a yaml manifest. Steps missing from the file fall back
// to the default layout under the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if m.Dir == "" {
		m.Dir = filepath.Dir(path)
	} else if !filepath.IsAbs(m.Dir) {
		m.Dir = filepath.Join(filepath.Dir(path), m.Dir)
	}

	for id := range m.Steps {
		if _, err := Lookup(id); err != nil {
			return nil, fmt.Errorf("manifest %s: %w", path, err)
		}
	}

	def := DefaultManifest(m.Dir)
	if m.Steps == nil {
		m.Steps = def.Steps
	}
	for id, media := range def.Steps {
		if _, ok := m.Steps[id]; !ok {
			m.Steps[id] = media
		}
	}
	return &m, nil
}

// Lookup returns absolute-or-dir-relative paths for the step's cues.
func (m *Manifest) Lookup(id int) (Media, error) {
	if _, err := Lookup(id); err != nil {
		return Media{}, err
	}
	media, ok := m.Steps[id]
	if !ok {
		return Media{}, fmt.Errorf("%w: %d has no media", ErrUnknownStep, id)
	}
	return Media{Image: m.resolve(media.Image), Audio: m.resolve(media.Audio)}, nil
}

func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// Marshal renders the manifest as yaml.
func (m *Manifest) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
