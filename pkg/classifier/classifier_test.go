package classifier_test

import (
	"strings"
	"testing"

	"github.com/go-go-golems/bookwright/pkg/classifier"
	"github.com/go-go-golems/bookwright/pkg/events"
	"github.com/go-go-golems/bookwright/pkg/fields"
	"github.com/go-go-golems/bookwright/pkg/transcript"
	"github.com/go-go-golems/bookwright/pkg/typewriter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	sched    *typewriter.ManualScheduler
	renderer *typewriter.Renderer
	log      *transcript.Transcript
	form     *fields.Memory
	c        *classifier.Classifier
}

func newHarness() *harness {
	h := &harness{
		sched: typewriter.NewManualScheduler(),
		log:   transcript.New(),
		form:  fields.NewMemory(fields.Map{}),
	}
	h.renderer = typewriter.NewRenderer(h.sched)
	h.c = classifier.New(h.renderer, h.log, h.form)
	return h
}

func reasoning(s string) events.Event { return &events.EventReasoning{Text: s} }
func narrative(s string) events.Event { return &events.EventNarrative{Text: s} }
func patch(f string, v fields.Value) events.Event {
	return &events.EventPatch{Field: f, Value: v}
}

func TestClassifier_ScenarioA(t *testing.T) {
	h := newHarness()

	ended := false
	for _, e := range []events.Event{
		reasoning("ana"),
		reasoning("lyzing"),
		patch("title", fields.String("Dune")),
		narrative("Done."),
		&events.EventEnd{},
	} {
		ended = h.c.Handle(e)
	}
	require.True(t, ended)

	entries := h.log.Entries()
	require.Len(t, entries, 3)

	assert.Equal(t, classifier.BlockReasoning, entries[0].Kind)
	assert.Equal(t, "analyzing", entries[0].Text)
	assert.True(t, entries[0].Closed)

	assert.Equal(t, classifier.BlockPatch, entries[1].Kind)
	assert.Equal(t, "title", entries[1].Field)
	assert.Equal(t, fields.String("Dune"), entries[1].Value)
	assert.False(t, entries[1].Cleared)

	assert.Equal(t, classifier.BlockNarrative, entries[2].Kind)
	assert.Equal(t, "Done.", entries[2].Text)
	assert.True(t, entries[2].Closed)

	v, ok := h.form.Get("title")
	require.True(t, ok)
	assert.Equal(t, "Dune", v.String())

	// everything was flushed on end, no frame is left
	assert.False(t, h.renderer.Scheduled())
	assert.Equal(t, 0, h.sched.Fire())
}

func TestClassifier_SameKindTextIsConcatenatedInOrder(t *testing.T) {
	h := newHarness()
	parts := []string{"It ", "was ", "a ", "dark ", "and ", "stormy ", "night", "", "."}
	for i, p := range parts {
		h.c.Handle(narrative(p))
		if i%3 == 0 {
			h.sched.Fire()
		}
	}
	h.sched.Drain(1000)

	blocks := h.log.Blocks(classifier.BlockNarrative)
	require.Len(t, blocks, 1)
	assert.Equal(t, strings.Join(parts, ""), blocks[0].Text)
	assert.False(t, blocks[0].Closed)
}

// closeCheckingView asserts that a block is fully revealed when it is closed.
type closeCheckingView struct {
	*transcript.Transcript
	t        *testing.T
	renderer *typewriter.Renderer
	closed   int
	// text of each block as it was at the moment it closed
	atClose map[classifier.BlockKind][]string
}

func (v *closeCheckingView) CloseBlock(kind classifier.BlockKind, target typewriter.Target) {
	assert.Equal(v.t, "", v.renderer.Pending(target), "pending text left when closing %s", kind)
	assert.False(v.t, v.renderer.Draining(target))
	blocks := v.Blocks(kind)
	require.NotEmpty(v.t, blocks)
	v.atClose[kind] = append(v.atClose[kind], blocks[len(blocks)-1].Text)
	v.closed++
	v.Transcript.CloseBlock(kind, target)
}

func TestClassifier_KindSwitchFlushesPreviousBlock(t *testing.T) {
	sched := typewriter.NewManualScheduler()
	renderer := typewriter.NewRenderer(sched)
	view := &closeCheckingView{
		Transcript: transcript.New(),
		t:          t,
		renderer:   renderer,
		atClose:    map[classifier.BlockKind][]string{},
	}
	c := classifier.New(renderer, view, fields.NewMemory(nil))

	wantReasoning := []string{}
	wantNarrative := []string{}
	for i := 0; i < 50; i++ {
		r := strings.Repeat("r", i+1)
		n := strings.Repeat("n", 50-i)
		c.Handle(reasoning(r))
		c.Handle(reasoning("!"))
		if i%7 == 0 {
			sched.Fire()
		}
		c.Handle(narrative(n))
		wantReasoning = append(wantReasoning, r+"!")
		wantNarrative = append(wantNarrative, n)
	}
	c.Handle(&events.EventEnd{})

	assert.Equal(t, 100, view.closed)
	gotReasoning := []string{}
	for _, b := range view.Blocks(classifier.BlockReasoning) {
		assert.True(t, b.Closed)
		gotReasoning = append(gotReasoning, b.Text)
	}
	gotNarrative := []string{}
	for _, b := range view.Blocks(classifier.BlockNarrative) {
		assert.True(t, b.Closed)
		gotNarrative = append(gotNarrative, b.Text)
	}
	assert.Equal(t, wantReasoning, gotReasoning)
	assert.Equal(t, wantNarrative, gotNarrative)
	assert.Equal(t, wantReasoning, view.atClose[classifier.BlockReasoning])
	assert.Equal(t, wantNarrative, view.atClose[classifier.BlockNarrative])
}

func TestClassifier_PatchWriteThrough(t *testing.T) {
	h := newHarness()

	h.c.Handle(reasoning("thinking about it"))
	h.c.Handle(patch("page_count", fields.Int(100)))
	h.c.Handle(patch("page_count", fields.Int(412)))
	h.c.Handle(patch("description", fields.Null()))

	v, _ := h.form.Get("page_count")
	assert.Equal(t, fields.Int(412), v)
	v, ok := h.form.Get("description")
	require.True(t, ok)
	assert.True(t, v.IsNull())

	// the reasoning block was closed by the first patch
	blocks := h.log.Blocks(classifier.BlockReasoning)
	require.Len(t, blocks, 1)
	assert.True(t, blocks[0].Closed)
	assert.Equal(t, "thinking about it", blocks[0].Text)

	patches := h.log.Blocks(classifier.BlockPatch)
	require.Len(t, patches, 3)
	assert.False(t, patches[0].Cleared)
	assert.False(t, patches[1].Cleared)
	assert.True(t, patches[2].Cleared)
	assert.Equal(t, classifier.BlockPatch, h.c.LastKind())
	assert.Equal(t, classifier.BlockKind(0), h.c.Open())
}

func TestClassifier_NarrativeAfterPatchOpensNewBlock(t *testing.T) {
	h := newHarness()

	h.c.Handle(narrative("one"))
	h.c.Handle(patch("title", fields.String("x")))
	h.c.Handle(narrative("two"))
	h.c.Finish()

	blocks := h.log.Blocks(classifier.BlockNarrative)
	require.Len(t, blocks, 2)
	assert.Equal(t, "one", blocks[0].Text)
	assert.Equal(t, "two", blocks[1].Text)
}

func TestClassifier_UnknownEventsAreIgnored(t *testing.T) {
	h := newHarness()

	h.c.Handle(reasoning("a"))
	assert.False(t, h.c.Handle(&events.EventUnknown{Type_: "citation"}))
	h.c.Handle(reasoning("b"))
	h.c.Finish()

	blocks := h.log.Blocks(classifier.BlockReasoning)
	require.Len(t, blocks, 1)
	assert.Equal(t, "ab", blocks[0].Text)
}

func TestClassifier_ResetClosesAndClearsLastKind(t *testing.T) {
	h := newHarness()

	h.c.Handle(reasoning("partial"))
	h.c.Reset()

	blocks := h.log.Blocks(classifier.BlockReasoning)
	require.Len(t, blocks, 1)
	assert.Equal(t, "partial", blocks[0].Text)
	assert.True(t, blocks[0].Closed)
	assert.Equal(t, classifier.BlockKind(0), h.c.LastKind())

	// a reasoning event in the next turn opens a fresh block
	h.c.Handle(reasoning("next"))
	h.c.Finish()
	assert.Len(t, h.log.Blocks(classifier.BlockReasoning), 2)
}
