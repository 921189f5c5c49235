package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(ch <-chan Event) []Event {
	var out []Event
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

func TestBus_DeliversInOrder(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe(8)
	defer cancel()

	b.Emit(DisplayStep(9))
	b.Emit(PlayAudio(9))
	b.Emit(ControlLabel("Shot!"))

	got := drain(ch)
	require.Len(t, got, 3)
	assert.Equal(t, KindDisplayStep, got[0].Kind)
	assert.Equal(t, 9, got[0].Step)
	assert.Equal(t, KindPlayAudio, got[1].Kind)
	assert.Equal(t, "Shot!", got[2].Label)
}

func TestBus_DropsWhenFullWithoutBlocking(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe(2)
	defer cancel()

	for i := 1; i <= 5; i++ {
		b.Emit(DisplayStep(i))
	}

	got := drain(ch)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Step)
	assert.Equal(t, 2, got[1].Step)
	assert.Equal(t, int64(3), b.Dropped())
}

func TestBus_UnsubscribeAndClose(t *testing.T) {
	b := NewBus()
	ch1, cancel1 := b.Subscribe(1)
	ch2, _ := b.Subscribe(1)

	cancel1()
	cancel1()
	_, ok := <-ch1
	assert.False(t, ok)

	b.Close()
	_, ok = <-ch2
	assert.False(t, ok)

	b.Emit(DisplayStep(1))
	assert.Equal(t, int64(0), b.Dropped())

	ch3, cancel3 := b.Subscribe(1)
	cancel3()
	_, ok = <-ch3
	assert.False(t, ok)
}
