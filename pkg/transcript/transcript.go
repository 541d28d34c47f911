// Package transcript keeps the assistant's visual log: text blocks as they
// are revealed, patch log lines, and the running / visible flags of the
// widget. It is safe for concurrent use so that a UI can render it while the
// controller writes to it.
package transcript

import (
	"strings"
	"sync"

	"github.com/go-go-golems/bookwright/pkg/classifier"
	"github.com/go-go-golems/bookwright/pkg/fields"
	"github.com/go-go-golems/bookwright/pkg/typewriter"
)

type Entry struct {
	Kind classifier.BlockKind
	// Text is the revealed text of a reasoning or narrative block.
	Text string
	// Closed is set once the block is finished and fully revealed.
	Closed bool

	Field   string
	Value   fields.Value
	Cleared bool
}

type entry struct {
	t *Transcript
	Entry
}

func (e *entry) Reveal(text string) {
	e.t.mu.Lock()
	e.Text += text
	e.t.mu.Unlock()
	e.t.changed()
}

type Transcript struct {
	mu       sync.Mutex
	entries  []*entry
	visible  bool
	running  bool
	onChange func()
}

type Option func(*Transcript)

// WithOnChange registers a hook invoked after every mutation, outside the lock.
func WithOnChange(f func()) Option {
	return func(t *Transcript) {
		t.onChange = f
	}
}

func New(options ...Option) *Transcript {
	ret := &Transcript{}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (t *Transcript) OpenBlock(kind classifier.BlockKind) typewriter.Target {
	e := &entry{t: t, Entry: Entry{Kind: kind}}
	t.mu.Lock()
	t.entries = append(t.entries, e)
	t.visible = true
	t.mu.Unlock()
	t.changed()
	return e
}

func (t *Transcript) CloseBlock(_ classifier.BlockKind, target typewriter.Target) {
	e, ok := target.(*entry)
	if !ok {
		return
	}
	t.mu.Lock()
	e.Closed = true
	t.mu.Unlock()
	t.changed()
}

func (t *Transcript) LogPatch(field string, value fields.Value) {
	e := &entry{t: t, Entry: Entry{
		Kind:    classifier.BlockPatch,
		Field:   field,
		Value:   value,
		Cleared: value.IsNull(),
		Closed:  true,
	}}
	t.mu.Lock()
	t.entries = append(t.entries, e)
	t.visible = true
	t.mu.Unlock()
	t.changed()
}

func (t *Transcript) SetRunning(running bool) {
	t.mu.Lock()
	t.running = running
	if running {
		t.visible = true
	}
	t.mu.Unlock()
	t.changed()
}

// Reset hides the widget and drops the log.
func (t *Transcript) Reset() {
	t.mu.Lock()
	t.entries = nil
	t.visible = false
	t.running = false
	t.mu.Unlock()
	t.changed()
}

func (t *Transcript) Visible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible
}

func (t *Transcript) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Entries returns a copy of the log in order.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	ret := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		ret[i] = e.Entry
	}
	return ret
}

// Blocks returns the entries of one kind.
func (t *Transcript) Blocks(kind classifier.BlockKind) []Entry {
	ret := []Entry{}
	for _, e := range t.Entries() {
		if e.Kind == kind {
			ret = append(ret, e)
		}
	}
	return ret
}

// Text concatenates the text of every block of kind.
func (t *Transcript) Text(kind classifier.BlockKind) string {
	sb := strings.Builder{}
	for _, e := range t.Blocks(kind) {
		sb.WriteString(e.Text)
	}
	return sb.String()
}

func (t *Transcript) changed() {
	if t.onChange != nil {
		t.onChange()
	}
}
