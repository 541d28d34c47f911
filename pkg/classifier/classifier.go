// Package classifier partitions the assistant event stream into blocks.
//
// A block ends when an event of a different kind arrives or the turn ends;
// there is no explicit close message per block. Reasoning and Narrative blocks
// stream through the typewriter renderer, patches are written through to the
// form at once.
package classifier

import (
	"github.com/go-go-golems/bookwright/pkg/events"
	"github.com/go-go-golems/bookwright/pkg/fields"
	"github.com/go-go-golems/bookwright/pkg/typewriter"
	"github.com/rs/zerolog/log"
)

type BlockKind int

const (
	BlockReasoning BlockKind = iota + 1
	BlockNarrative
	BlockPatch
)

func (k BlockKind) String() string {
	switch k {
	case BlockReasoning:
		return "reasoning"
	case BlockNarrative:
		return "narrative"
	case BlockPatch:
		return "patch"
	default:
		return "none"
	}
}

// View receives the visual side of classification.
type View interface {
	// OpenBlock starts a new text block and returns where its text goes.
	OpenBlock(kind BlockKind) typewriter.Target
	// CloseBlock is called once all of the block's text has been revealed.
	CloseBlock(kind BlockKind, target typewriter.Target)
	// LogPatch records a field write. A null value means the field was cleared.
	LogPatch(field string, value fields.Value)
}

type openBlock struct {
	kind   BlockKind
	target typewriter.Target
}

type Classifier struct {
	renderer *typewriter.Renderer
	view     View
	form     fields.Form

	// lastKind is zero before the first event of a turn
	lastKind BlockKind
	open     *openBlock
}

func New(renderer *typewriter.Renderer, view View, form fields.Form) *Classifier {
	return &Classifier{
		renderer: renderer,
		view:     view,
		form:     form,
	}
}

// LastKind returns the kind of the last classified event.
func (c *Classifier) LastKind() BlockKind {
	return c.lastKind
}

// Open returns the kind of the block currently open, zero if none.
func (c *Classifier) Open() BlockKind {
	if c.open == nil {
		return 0
	}
	return c.open.kind
}

// Handle classifies one event. It returns true when the event ends the turn.
func (c *Classifier) Handle(e events.Event) bool {
	switch ev := e.(type) {
	case *events.EventReasoning:
		c.appendText(BlockReasoning, ev.Text)
	case *events.EventNarrative:
		c.appendText(BlockNarrative, ev.Text)
	case *events.EventPatch:
		c.closeOpen()
		c.form.Set(ev.Field, ev.Value)
		c.view.LogPatch(ev.Field, ev.Value)
		c.lastKind = BlockPatch
	case *events.EventEnd:
		c.closeOpen()
		return true
	case *events.EventUnknown:
		log.Debug().Str("component", "classifier").Str("type", string(ev.Type())).Msg("Ignoring unknown event type")
	}
	return false
}

// Finish force-closes the open block, flushing its pending text.
func (c *Classifier) Finish() {
	c.closeOpen()
}

// Reset finishes and prepares for a new turn.
func (c *Classifier) Reset() {
	c.closeOpen()
	c.lastKind = 0
}

func (c *Classifier) appendText(kind BlockKind, text string) {
	if c.lastKind != kind || c.open == nil || c.open.kind != kind {
		c.closeOpen()
		c.open = &openBlock{
			kind:   kind,
			target: c.view.OpenBlock(kind),
		}
	}
	c.renderer.Enqueue(c.open.target, text)
	c.lastKind = kind
}

func (c *Classifier) closeOpen() {
	if c.open == nil {
		return
	}
	b := c.open
	c.open = nil
	c.renderer.Release(b.target)
	c.view.CloseBlock(b.kind, b.target)
}
