// Package events carries the ordered messages the sequencer emits to the
// display and audio collaborators.
package events

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"
)

// Kind identifies an event.
type Kind int

const (
	KindDisplayStep Kind = iota
	KindPlayAudio
	KindControlLabel
	KindPreviewFrame
)

func (k Kind) String() string {
	switch k {
	case KindDisplayStep:
		return "display-step"
	case KindPlayAudio:
		return "play-audio"
	case KindControlLabel:
		return "control-label"
	case KindPreviewFrame:
		return "preview-frame"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one message. Only the field matching Kind is set.
type Event struct {
	Kind  Kind
	Step  int
	Label string
	Frame image.Image
}

func DisplayStep(n int) Event { return Event{Kind: KindDisplayStep, Step: n} }

func PlayAudio(n int) Event { return Event{Kind: KindPlayAudio, Step: n} }

func ControlLabel(text string) Event { return Event{Kind: KindControlLabel, Label: text} }

func PreviewFrame(f image.Image) Event { return Event{Kind: KindPreviewFrame, Frame: f} }

// Emitter accepts events. Emit never blocks.
type Emitter interface {
	Emit(Event)
}

// Bus fans events out to subscribers. A subscriber whose buffer is full
// misses the event; delivery order is preserved for what it does receive.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	nextID  int
	closed  bool
	dropped atomic.Int64
}

// NewBus returns a bus with no subscribers.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel receiving every later event and a function
// that unsubscribes and closes it.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Emit delivers e to every subscriber with room for it.
func (b *Bus) Emit(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns how many deliveries were skipped because a subscriber
// was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel. Later emits are discarded.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
