package typewriter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTarget struct {
	chunks []string
}

func (r *recordingTarget) Reveal(text string) {
	r.chunks = append(r.chunks, text)
}

func (r *recordingTarget) String() string {
	return strings.Join(r.chunks, "")
}

func TestRenderer_RevealsFractionPerTick(t *testing.T) {
	s := NewManualScheduler()
	r := NewRenderer(s, WithFraction(0.5))
	target := &recordingTarget{}

	r.Enqueue(target, "abcdefgh")
	assert.True(t, r.Draining(target))
	assert.Equal(t, 1, s.Pending())
	assert.Empty(t, target.chunks)

	s.Fire()
	assert.Equal(t, []string{"abcd"}, target.chunks)
	s.Fire()
	assert.Equal(t, []string{"abcd", "ef"}, target.chunks)
	s.Fire()
	s.Fire()
	assert.Equal(t, []string{"abcd", "ef", "g", "h"}, target.chunks)

	assert.False(t, r.Draining(target))
	assert.Equal(t, 0, s.Pending())
	assert.False(t, r.Scheduled())
}

func TestRenderer_AtLeastOneRunePerTick(t *testing.T) {
	s := NewManualScheduler()
	r := NewRenderer(s, WithFraction(0.01))
	target := &recordingTarget{}

	r.Enqueue(target, "hé!")
	s.Fire()
	assert.Equal(t, []string{"h"}, target.chunks)
	s.Fire()
	assert.Equal(t, []string{"h", "é"}, target.chunks)
}

func TestRenderer_OrderMatchesArrival(t *testing.T) {
	s := NewManualScheduler()
	r := NewRenderer(s)
	target := &recordingTarget{}

	parts := []string{"The ", "quick ", "brown ", "fox ", "jumps"}
	for i, p := range parts {
		r.Enqueue(target, p)
		if i%2 == 0 {
			s.Fire()
		}
	}
	s.Drain(1000)

	assert.Equal(t, strings.Join(parts, ""), target.String())
	assert.Equal(t, 0, s.Pending())
}

func TestRenderer_FlushIsIdempotent(t *testing.T) {
	s := NewManualScheduler()
	r := NewRenderer(s)
	target := &recordingTarget{}
	other := &recordingTarget{}

	// flushing an unknown buffer is fine
	r.Flush(other)

	r.Enqueue(target, "pending text")
	r.Flush(target)
	r.Flush(target)

	assert.Equal(t, []string{"pending text"}, target.chunks)
	assert.False(t, r.Draining(target))
	assert.Equal(t, 0, s.Pending())

	// the cancelled frame must not reveal anything when fired
	s.Fire()
	assert.Equal(t, []string{"pending text"}, target.chunks)
	assert.Empty(t, other.chunks)
}

func TestRenderer_FlushKeepsOtherBuffersDraining(t *testing.T) {
	s := NewManualScheduler()
	r := NewRenderer(s)
	a := &recordingTarget{}
	b := &recordingTarget{}

	r.Enqueue(a, "aaaa")
	r.Enqueue(b, "bbbb")
	r.Flush(a)

	assert.True(t, r.Scheduled())
	assert.True(t, r.Draining(b))
	s.Drain(100)
	assert.Equal(t, "aaaa", a.String())
	assert.Equal(t, "bbbb", b.String())
}

func TestRenderer_FlushAllStopsTicks(t *testing.T) {
	s := NewManualScheduler()
	r := NewRenderer(s)
	a := &recordingTarget{}
	b := &recordingTarget{}

	r.Enqueue(a, "first block")
	r.Enqueue(b, "second block")
	s.Fire()
	r.FlushAll()

	assert.Equal(t, "first block", a.String())
	assert.Equal(t, "second block", b.String())
	assert.False(t, r.Scheduled())
	assert.Equal(t, 0, s.Fire())
}

func TestRenderer_ReleaseForgetsBuffer(t *testing.T) {
	s := NewManualScheduler()
	r := NewRenderer(s)
	a := &recordingTarget{}

	r.Enqueue(a, "abc")
	r.Release(a)
	assert.Equal(t, "abc", a.String())
	assert.Equal(t, "", r.Pending(a))

	r.Enqueue(a, "d")
	s.Drain(10)
	assert.Equal(t, "abcd", a.String())
}

func TestRenderer_DirectTickSupersedesScheduledFrame(t *testing.T) {
	s := NewManualScheduler()
	r := NewRenderer(s, WithFraction(1))
	a := &recordingTarget{}

	r.Enqueue(a, "xyz")
	r.Tick()
	require.Equal(t, "xyz", a.String())
	assert.Equal(t, 0, s.Fire())
}

func TestRenderer_LargeBurstCatchesUpFaster(t *testing.T) {
	count := func(text string) int {
		s := NewManualScheduler()
		r := NewRenderer(s)
		target := &recordingTarget{}
		r.Enqueue(target, text)
		return s.Drain(10000)
	}

	short := count(strings.Repeat("x", 10))
	long := count(strings.Repeat("x", 1000))
	assert.Less(t, long, 100*short)
	assert.Greater(t, short, 1)
}

func TestRenderer_SynchronousScheduler(t *testing.T) {
	calls := 0
	s := SchedulerFunc(func(fn func()) func() {
		calls++
		fn()
		return func() {}
	})
	r := NewRenderer(s, WithFraction(0.5))
	target := &recordingTarget{}

	r.Enqueue(target, "abcd")
	assert.Equal(t, "abcd", target.String())
	assert.Equal(t, []string{"ab", "c", "d"}, target.chunks)
	assert.False(t, r.Draining(target))
	assert.False(t, r.Scheduled())
	assert.Equal(t, 3, calls)

	r.Enqueue(target, "ef")
	assert.Equal(t, "abcdef", target.String())
	assert.False(t, r.Scheduled())
}
