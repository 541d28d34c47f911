// Package typewriter reveals queued text at a bounded rate, independent of how
// fast the text arrives.
//
// Each Target owns one buffer. Every frame, each draining buffer emits a fixed
// fraction of what it still holds (at least one rune), so long bursts catch up
// quickly while short trickles stay perceptible. A Renderer is not safe for
// concurrent use; callers serialize Enqueue, Flush and frame callbacks.
package typewriter

import (
	"math"
)

// DefaultFraction is the share of pending text revealed per frame.
const DefaultFraction = 0.125

// Target is a render region that receives revealed text in order.
type Target interface {
	Reveal(text string)
}

type buffer struct {
	target   Target
	pending  []rune
	draining bool
}

type Renderer struct {
	scheduler Scheduler
	fraction  float64

	buffers map[Target]*buffer
	// order keeps Tick deterministic
	order []*buffer

	cancel  func()
	frameID uint64
}

type Option func(*Renderer)

func WithFraction(f float64) Option {
	return func(r *Renderer) {
		if f > 0 && f <= 1 {
			r.fraction = f
		}
	}
}

// NewRenderer creates a renderer. Targets are used as map keys and must be
// comparable, typically pointers.
func NewRenderer(scheduler Scheduler, options ...Option) *Renderer {
	ret := &Renderer{
		scheduler: scheduler,
		fraction:  DefaultFraction,
		buffers:   map[Target]*buffer{},
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

// Enqueue appends text to the target's buffer and makes sure a frame is scheduled.
func (r *Renderer) Enqueue(target Target, text string) {
	if text == "" {
		return
	}
	b, ok := r.buffers[target]
	if !ok {
		b = &buffer{target: target}
		r.buffers[target] = b
		r.order = append(r.order, b)
	}
	b.pending = append(b.pending, []rune(text)...)
	b.draining = true
	r.ensureScheduled()
}

// Flush emits everything pending for target right away. It is a no-op for
// unknown or empty buffers.
func (r *Renderer) Flush(target Target) {
	b, ok := r.buffers[target]
	if !ok {
		return
	}
	r.flushBuffer(b)
	if !r.anyDraining() {
		r.cancelFrame()
	}
}

// FlushAll drains every buffer and cancels the scheduled frame.
func (r *Renderer) FlushAll() {
	for _, b := range r.order {
		r.flushBuffer(b)
	}
	r.cancelFrame()
}

// Release flushes target and forgets its buffer.
func (r *Renderer) Release(target Target) {
	b, ok := r.buffers[target]
	if !ok {
		return
	}
	r.Flush(target)
	delete(r.buffers, target)
	for i, o := range r.order {
		if o == b {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Pending returns the text not yet revealed for target.
func (r *Renderer) Pending(target Target) string {
	b, ok := r.buffers[target]
	if !ok {
		return ""
	}
	return string(b.pending)
}

// Draining reports whether target still has text waiting for a frame.
func (r *Renderer) Draining(target Target) bool {
	b, ok := r.buffers[target]
	return ok && b.draining
}

// Scheduled reports whether a frame is currently scheduled.
func (r *Renderer) Scheduled() bool {
	return r.cancel != nil
}

// Tick runs one reveal step. It is what scheduled frames call, and can be
// called directly by tests.
func (r *Renderer) Tick() {
	r.cancelFrame()

	for _, b := range r.order {
		if !b.draining {
			continue
		}
		n := int(math.Ceil(float64(len(b.pending)) * r.fraction))
		if n < 1 {
			n = 1
		}
		if n > len(b.pending) {
			n = len(b.pending)
		}
		chunk := string(b.pending[:n])
		b.pending = b.pending[n:]
		if len(b.pending) == 0 {
			b.pending = nil
			b.draining = false
		}
		b.target.Reveal(chunk)
	}

	if r.anyDraining() {
		r.ensureScheduled()
	}
}

func (r *Renderer) flushBuffer(b *buffer) {
	if len(b.pending) == 0 {
		b.draining = false
		return
	}
	text := string(b.pending)
	b.pending = nil
	b.draining = false
	b.target.Reveal(text)
}

func (r *Renderer) anyDraining() bool {
	for _, b := range r.order {
		if b.draining {
			return true
		}
	}
	return false
}

func (r *Renderer) ensureScheduled() {
	if r.cancel != nil {
		return
	}
	r.frameID++
	id := r.frameID
	// set before scheduling, a scheduler may run the frame synchronously
	r.cancel = func() {}
	cancel := r.scheduler.ScheduleFrame(func() {
		// a frame that was cancelled or superseded may still fire
		if id != r.frameID || r.cancel == nil {
			return
		}
		r.Tick()
	})
	if id == r.frameID && r.cancel != nil {
		r.cancel = cancel
	}
}

func (r *Renderer) cancelFrame() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.cancel = nil
	r.frameID++
}
