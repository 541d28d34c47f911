package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/bookwright/pkg/assistant"
)

type Notification struct {
	Message string
	Level   assistant.Level
}

// Bus wakes the program up when the transcript, the form or the notifications
// changed. Producers never block: wakeups coalesce until the program has
// redrawn.
type Bus struct {
	dirty chan struct{}
	done  chan struct{}
	once  sync.Once

	mu    sync.Mutex
	notes []Notification
}

var _ assistant.Notifier = (*Bus)(nil)

func NewBus() *Bus {
	return &Bus{
		dirty: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (b *Bus) Changed() {
	select {
	case b.dirty <- struct{}{}:
	default:
	}
}

func (b *Bus) Notify(message string, level assistant.Level) {
	b.mu.Lock()
	b.notes = append(b.notes, Notification{Message: message, Level: level})
	b.mu.Unlock()
	b.Changed()
}

// Close releases a pending Wait.
func (b *Bus) Close() {
	b.once.Do(func() {
		close(b.done)
	})
}

func (b *Bus) drain() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	ret := b.notes
	b.notes = nil
	return ret
}

type refreshMsg struct{}

// Wait returns a command that resolves on the next change.
func (b *Bus) Wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-b.dirty:
			return refreshMsg{}
		case <-b.done:
			return nil
		}
	}
}
