package ui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/bookwright/pkg/assistant"
	"github.com/go-go-golems/bookwright/pkg/classifier"
	"github.com/go-go-golems/bookwright/pkg/fields"
	"github.com/go-go-golems/bookwright/pkg/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAssistant struct {
	mu       sync.Mutex
	prompts  []string
	snapshot fields.Map
	stops    int
	err      error
}

func (f *fakeAssistant) Send(_ context.Context, prompt string, snapshot fields.Map) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.snapshot = snapshot
	return f.err
}

func (f *fakeAssistant) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func newTestModel(t *testing.T, a Assistant) (Model, *transcript.Transcript, *fields.Memory) {
	t.Helper()
	bus := NewBus()
	t.Cleanup(bus.Close)
	tr := transcript.New(transcript.WithOnChange(bus.Changed))
	form := fields.NewMemory(fields.Map{
		fields.Title:     fields.String("Dune"),
		fields.PageCount: fields.Null(),
	})
	m := NewModel(a, tr, form, []string{fields.Title, fields.Description, fields.PageCount}, bus,
		WithMarkdownStyle("notty"))
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	return next.(Model), tr, form
}

// collect runs cmd and returns the messages it produced, expanding batches.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		ret := []tea.Msg{}
		for _, c := range batch {
			ret = append(ret, collect(c)...)
		}
		return ret
	}
	return []tea.Msg{msg}
}

func TestSubmitSendsPromptAndSnapshot(t *testing.T) {
	a := &fakeAssistant{}
	m, _, _ := newTestModel(t, a)

	m.textArea.SetValue("  suggest a description  ")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	assert.True(t, m.sending)
	assert.Equal(t, "", m.textArea.Value())
	assert.Contains(t, m.statusView(), "connecting")

	msgs := collect(cmd)
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"suggest a description"}, a.prompts)
	assert.Equal(t, fields.String("Dune"), a.snapshot[fields.Title])

	next, _ = m.Update(msgs[0])
	m = next.(Model)
	assert.False(t, m.sending)
}

func TestEmptyPromptIsRejected(t *testing.T) {
	a := &fakeAssistant{}
	m, _, _ := newTestModel(t, a)

	m.textArea.SetValue("   ")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	assert.Empty(t, collect(cmd))
	assert.Empty(t, a.prompts)
	assert.False(t, m.sending)
	require.NotNil(t, m.status)
	assert.Equal(t, assistant.LevelWarning, m.status.Level)
}

func TestInputDisabledWhileRunning(t *testing.T) {
	a := &fakeAssistant{}
	m, tr, _ := newTestModel(t, a)

	tr.SetRunning(true)
	m.textArea.SetValue("second question")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	assert.Empty(t, collect(cmd))
	assert.Empty(t, a.prompts)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	m = next.(Model)
	assert.Equal(t, "second question", m.textArea.Value())

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	m = next.(Model)
	assert.Equal(t, 1, a.stops)
	assert.Contains(t, m.statusView(), "answering")
}

func TestQuitStopsAssistant(t *testing.T) {
	a := &fakeAssistant{}
	m, _, _ := newTestModel(t, a)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Equal(t, 1, a.stops)
}

func TestRefreshShowsNotificationsAndTranscript(t *testing.T) {
	a := &fakeAssistant{}
	m, tr, _ := newTestModel(t, a)
	assert.Contains(t, m.View(), "fill in or improve")

	target := tr.OpenBlock(classifier.BlockNarrative)
	target.Reveal("Half a sent")
	tr.LogPatch(fields.Title, fields.String("Dune Messiah"))
	m.bus.Notify("quota exceeded", assistant.LevelError)

	msgs := collect(m.bus.Wait())
	require.Len(t, msgs, 1)
	next, _ := m.Update(msgs[0])
	m = next.(Model)

	require.NotNil(t, m.status)
	assert.Equal(t, "quota exceeded", m.status.Message)
	view := m.View()
	assert.Contains(t, view, "quota exceeded")
	assert.Contains(t, view, "Half a sent")
	assert.Contains(t, view, "Title: Dune Messiah")
	assert.Contains(t, view, "Page Count:")
}

func TestBusCoalescesWakeups(t *testing.T) {
	b := NewBus()
	for i := 0; i < 10; i++ {
		b.Changed()
	}
	assert.Equal(t, refreshMsg{}, b.Wait()())

	done := make(chan tea.Msg)
	go func() { done <- b.Wait()() }()
	b.Close()
	select {
	case msg := <-done:
		assert.Nil(t, msg)
	case <-time.After(time.Second):
		t.Fatal("wait did not return after close")
	}
}

func TestRenderEntries(t *testing.T) {
	r := newEntryRenderer(DefaultStyles(), "notty")
	r.setWidth(60)

	out := r.Render([]transcript.Entry{
		{Kind: classifier.BlockReasoning, Text: "first I look at the title\nthen the pages", Closed: true},
		{Kind: classifier.BlockNarrative, Text: "Set the **title**.", Closed: true},
		{Kind: classifier.BlockPatch, Field: fields.PageCount, Value: fields.Null(), Cleared: true},
		{Kind: classifier.BlockPatch, Field: fields.PageCount, Value: fields.Int(412)},
	})
	assert.Contains(t, out, "thought (9 words) first I look at the title")
	assert.NotContains(t, out, "then the pages")
	assert.Contains(t, out, "Set the")
	assert.Contains(t, out, "Page Count cleared")
	assert.Contains(t, out, "Page Count: 412")

	open := r.Render([]transcript.Entry{{Kind: classifier.BlockReasoning, Text: "still thinking"}})
	assert.Contains(t, open, "still thinking")
	assert.False(t, strings.Contains(open, "thought ("))
}
