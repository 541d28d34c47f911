package typewriter

import (
	"sync"
	"time"
)

// DefaultFrameInterval approximates a 60Hz display.
const DefaultFrameInterval = 16 * time.Millisecond

// Scheduler runs fn once on a later frame. The returned cancel func prevents
// the call if it has not happened yet.
type Scheduler interface {
	ScheduleFrame(fn func()) (cancel func())
}

// FrameScheduler fires frames on a timer goroutine after Interval.
type FrameScheduler struct {
	Interval time.Duration
}

func NewFrameScheduler(interval time.Duration) *FrameScheduler {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &FrameScheduler{Interval: interval}
}

func (f *FrameScheduler) ScheduleFrame(fn func()) func() {
	t := time.AfterFunc(f.Interval, fn)
	return func() {
		t.Stop()
	}
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(fn func()) func()

func (s SchedulerFunc) ScheduleFrame(fn func()) func() {
	return s(fn)
}

// ManualScheduler queues frames until the caller fires them. It makes reveal
// timing fully deterministic.
type ManualScheduler struct {
	mu     sync.Mutex
	frames []*manualFrame
}

type manualFrame struct {
	fn        func()
	cancelled bool
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (m *ManualScheduler) ScheduleFrame(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := &manualFrame{fn: fn}
	m.frames = append(m.frames, f)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		f.cancelled = true
	}
}

// Pending returns the number of frames scheduled and not cancelled.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, f := range m.frames {
		if !f.cancelled {
			n++
		}
	}
	return n
}

// Fire runs the frames queued so far. Frames scheduled while firing wait for
// the next call. It returns how many frames ran.
func (m *ManualScheduler) Fire() int {
	m.mu.Lock()
	frames := m.frames
	m.frames = nil
	m.mu.Unlock()

	n := 0
	for _, f := range frames {
		m.mu.Lock()
		cancelled := f.cancelled
		m.mu.Unlock()
		if cancelled {
			continue
		}
		f.fn()
		n++
	}
	return n
}

// Drain fires frames until none are left or max rounds have run.
func (m *ManualScheduler) Drain(max int) int {
	rounds := 0
	for rounds < max && m.Fire() > 0 {
		rounds++
	}
	return rounds
}
