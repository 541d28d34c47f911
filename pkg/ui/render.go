package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/go-go-golems/bookwright/pkg/classifier"
	"github.com/go-go-golems/bookwright/pkg/fields"
	"github.com/go-go-golems/bookwright/pkg/transcript"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"github.com/rs/zerolog/log"
)

// entryRenderer turns transcript entries into terminal text. Closed narrative
// blocks go through glamour, which is slow enough to be worth caching.
type entryRenderer struct {
	style         *Style
	markdownStyle string
	width         int
	markdown      *glamour.TermRenderer
	cache         map[string]string
}

func newEntryRenderer(style *Style, markdownStyle string) *entryRenderer {
	return &entryRenderer{
		style:         style,
		markdownStyle: markdownStyle,
		cache:         map[string]string{},
	}
}

func (r *entryRenderer) setWidth(width int) {
	if width == r.width {
		return
	}
	r.width = width
	r.markdown = nil
	r.cache = map[string]string{}
}

func (r *entryRenderer) textWidth() int {
	w := r.width - 4
	if w < 10 {
		w = 10
	}
	return w
}

func (r *entryRenderer) Render(entries []transcript.Entry) string {
	var sb strings.Builder
	for i, e := range entries {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(r.renderEntry(e))
	}
	return sb.String()
}

func (r *entryRenderer) renderEntry(e transcript.Entry) string {
	switch e.Kind {
	case classifier.BlockReasoning:
		if e.Closed {
			return r.style.Reasoning.Render(collapseReasoning(e.Text, r.textWidth()))
		}
		return r.style.Reasoning.Render(wordwrap.String(e.Text, r.textWidth()))
	case classifier.BlockNarrative:
		if e.Closed {
			return r.renderMarkdown(e.Text)
		}
		return r.style.Narrative.Render(wordwrap.String(e.Text, r.textWidth()))
	case classifier.BlockPatch:
		return r.renderPatch(e.Field, e.Value)
	default:
		return ""
	}
}

func (r *entryRenderer) renderPatch(field string, value fields.Value) string {
	if value.IsNull() {
		return r.style.Cleared.Render(fmt.Sprintf("✎ %s cleared", fields.Label(field)))
	}
	line := fmt.Sprintf("✎ %s: %s", fields.Label(field), value.String())
	return r.style.Patch.Render(truncate.StringWithTail(line, uint(r.textWidth()), "…"))
}

func (r *entryRenderer) renderMarkdown(text string) string {
	if s, ok := r.cache[text]; ok {
		return s
	}
	if r.markdown == nil {
		options := []glamour.TermRendererOption{glamour.WithWordWrap(r.textWidth())}
		if r.markdownStyle != "" {
			options = append(options, glamour.WithStandardStyle(r.markdownStyle))
		} else {
			options = append(options, glamour.WithAutoStyle())
		}
		md, err := glamour.NewTermRenderer(options...)
		if err != nil {
			log.Warn().Err(err).Str("component", "ui").Msg("Could not create markdown renderer")
			return r.style.Narrative.Render(wordwrap.String(text, r.textWidth()))
		}
		r.markdown = md
	}

	s, err := r.markdown.Render(text)
	if err != nil {
		log.Warn().Err(err).Str("component", "ui").Msg("Could not render markdown")
		s = r.style.Narrative.Render(wordwrap.String(text, r.textWidth()))
	}
	s = strings.TrimRight(s, "\n")
	r.cache[text] = s
	return s
}

// collapseReasoning shows a finished reasoning block as one line.
func collapseReasoning(text string, width int) string {
	words := len(strings.Fields(text))
	first := strings.TrimSpace(text)
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	line := fmt.Sprintf("▸ thought (%d words) %s", words, first)
	return truncate.StringWithTail(line, uint(width), "…")
}

// renderForm lists the current field values, labelled, in the given order.
func renderForm(style *Style, names []string, values fields.Map) string {
	lines := make([]string, 0, len(names))
	for _, name := range names {
		v := values[name]
		value := v.String()
		if v.IsNull() {
			value = "—"
		}
		lines = append(lines, style.FormLabel.Render(fields.Label(name)+":")+" "+value)
	}
	return style.FormPanel.Render(strings.Join(lines, "\n"))
}
