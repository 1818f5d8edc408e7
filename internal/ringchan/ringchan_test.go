package ringchan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingKeepsNewestWhenFull(t *testing.T) {
	r := New[int](3)

	dropped := 0
	for i := 0; i < 10; i++ {
		if r.Send(i) {
			dropped++
		}
	}

	assert.Equal(t, 7, dropped, "ring MUST drop the seven oldest values")
	assert.Equal(t, 3, r.Len(), "ring MUST stay at capacity")

	var got []int
	for {
		v, ok := r.TryReceive()
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.Equal(t, []int{7, 8, 9}, got, "ring MUST retain the newest values in order")

	stats := r.Stats()
	assert.Equal(t, int64(10), stats.Written)
	assert.Equal(t, int64(7), stats.Overwritten)
	assert.Equal(t, int64(3), stats.Received)
}

func TestRingSendNeverBlocksWithoutConsumer(t *testing.T) {
	r := New[string](1)
	for i := 0; i < 100; i++ {
		r.Send("x")
	}
	assert.Equal(t, 1, r.Len())
}

func TestRingChannelReceive(t *testing.T) {
	r := New[int](2)
	r.Send(42)

	select {
	case v := <-r.C():
		assert.Equal(t, 42, v)
	default:
		t.Fatal("value MUST be readable through C()")
	}
}

func TestNewPanicsOnInvalidCapacity(t *testing.T) {
	require.Panics(t, func() { New[int](0) })
}
