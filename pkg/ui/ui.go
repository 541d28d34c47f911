package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/bookwright/pkg/assistant"
	"github.com/go-go-golems/bookwright/pkg/fields"
	"github.com/go-go-golems/bookwright/pkg/transcript"
	"github.com/pkg/errors"
)

// Assistant is the part of the controller the UI drives.
type Assistant interface {
	Send(ctx context.Context, prompt string, snapshot fields.Map) error
	Stop()
}

type Model struct {
	assistant  Assistant
	transcript *transcript.Transcript
	form       fields.Form
	fieldNames []string
	bus        *Bus
	ctx        context.Context

	viewport viewport.Model
	textArea textarea.Model
	help     help.Model
	keyMap   KeyMap
	style    *Style
	entries  *entryRenderer

	width  int
	height int

	// sending is set while Send waits for the connection
	sending bool
	status  *Notification
}

type Option func(*Model)

func WithStyle(s *Style) Option {
	return func(m *Model) {
		m.style = s
		m.entries.style = s
	}
}

// WithMarkdownStyle selects a glamour standard style instead of auto detection.
func WithMarkdownStyle(name string) Option {
	return func(m *Model) {
		m.entries.markdownStyle = name
	}
}

func WithContext(ctx context.Context) Option {
	return func(m *Model) {
		m.ctx = ctx
	}
}

func NewModel(
	a Assistant,
	tr *transcript.Transcript,
	form fields.Form,
	fieldNames []string,
	bus *Bus,
	options ...Option,
) Model {
	style := DefaultStyles()
	ret := Model{
		assistant:  a,
		transcript: tr,
		form:       form,
		fieldNames: fieldNames,
		bus:        bus,
		ctx:        context.Background(),
		viewport:   viewport.New(0, 0),
		help:       help.New(),
		keyMap:     DefaultKeyMap,
		style:      style,
		entries:    newEntryRenderer(style, ""),
	}
	for _, o := range options {
		o(&ret)
	}

	ret.textArea = textarea.New()
	ret.textArea.Placeholder = "Ask the assistant about this book..."
	ret.textArea.ShowLineNumbers = false
	ret.textArea.SetHeight(3)
	ret.textArea.KeyMap.InsertNewline = ret.keyMap.NewLine
	ret.textArea.Focus()

	ret.keyMap.updateKeyBindings(false)

	return ret
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.bus.Wait())
}

type sendResultMsg struct {
	err error
}

func (m Model) busy() bool {
	return m.sending || m.transcript.Running()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keyMap.Quit):
			m.assistant.Stop()
			m.bus.Close()
			return m, tea.Quit

		case key.Matches(msg, m.keyMap.Stop):
			m.assistant.Stop()

		case key.Matches(msg, m.keyMap.Submit):
			cmd = m.submit()
			cmds = append(cmds, cmd)

		case key.Matches(msg, m.keyMap.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.recomputeSize()

		case key.Matches(msg, m.keyMap.ScrollUp):
			m.viewport.HalfViewUp()

		case key.Matches(msg, m.keyMap.ScrollDown):
			m.viewport.HalfViewDown()

		default:
			if !m.busy() {
				m.textArea, cmd = m.textArea.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.refresh()

	case sendResultMsg:
		m.sending = false
		if msg.err != nil {
			switch {
			case errors.Is(msg.err, assistant.ErrEmptyPrompt):
				m.status = &Notification{Message: "Type a question first", Level: assistant.LevelWarning}
			case errors.Is(msg.err, assistant.ErrTurnInFlight):
				m.status = &Notification{Message: "The assistant is still answering", Level: assistant.LevelWarning}
			}
		}
		m.refresh()

	case refreshMsg:
		if notes := m.bus.drain(); len(notes) > 0 {
			n := notes[len(notes)-1]
			m.status = &n
		}
		m.refresh()
		cmds = append(cmds, m.bus.Wait())
	}

	if !m.busy() && !m.textArea.Focused() {
		cmds = append(cmds, m.textArea.Focus())
	}
	m.keyMap.updateKeyBindings(m.busy())

	return m, tea.Batch(cmds...)
}

func (m *Model) submit() tea.Cmd {
	if m.busy() {
		return nil
	}
	prompt := strings.TrimSpace(m.textArea.Value())
	if prompt == "" {
		m.status = &Notification{Message: "Type a question first", Level: assistant.LevelWarning}
		return nil
	}

	m.status = nil
	m.sending = true
	m.textArea.Reset()
	m.textArea.Blur()
	m.keyMap.updateKeyBindings(true)

	a := m.assistant
	ctx := m.ctx
	snapshot := m.form.Snapshot()
	return func() tea.Msg {
		return sendResultMsg{err: a.Send(ctx, prompt, snapshot)}
	}
}

func (m *Model) refresh() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.transcriptView())
	m.recomputeSize()
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) recomputeSize() {
	headerHeight := lipgloss.Height(m.headerView())
	formHeight := lipgloss.Height(m.formView())
	statusHeight := lipgloss.Height(m.statusView())
	inputHeight := lipgloss.Height(m.textAreaView())
	helpHeight := lipgloss.Height(m.help.View(m.keyMap))

	newHeight := m.height - headerHeight - formHeight - statusHeight - inputHeight - helpHeight
	if newHeight < 0 {
		newHeight = 0
	}
	m.viewport.Width = m.width
	m.viewport.Height = newHeight

	h, _ := m.style.Input.GetFrameSize()
	m.textArea.SetWidth(m.width - h)
	m.help.Width = m.width
	m.entries.setWidth(m.width)
}

func (m Model) headerView() string {
	return m.style.Header.Render("BOOK ASSISTANT")
}

func (m Model) formView() string {
	return renderForm(m.style, m.fieldNames, m.form.Snapshot())
}

func (m Model) transcriptView() string {
	if !m.transcript.Visible() {
		return m.style.StatusInfo.Render("Ask the assistant to fill in or improve the book card.")
	}
	return m.entries.Render(m.transcript.Entries())
}

func (m Model) statusView() string {
	switch {
	case m.sending:
		return m.style.StatusInfo.Render("connecting...")
	case m.transcript.Running():
		return m.style.StatusInfo.Render("the assistant is answering (ctrl+s to stop)")
	case m.status == nil:
		return ""
	}
	switch m.status.Level {
	case assistant.LevelError:
		return m.style.StatusErr.Render(m.status.Message)
	case assistant.LevelWarning:
		return m.style.StatusWarn.Render(m.status.Message)
	default:
		return m.style.StatusInfo.Render(m.status.Message)
	}
}

func (m Model) textAreaView() string {
	if m.busy() {
		return m.style.InputBusy.Render(m.textArea.View())
	}
	return m.style.Input.Render(m.textArea.View())
}

func (m Model) View() string {
	return strings.Join([]string{
		m.headerView(),
		m.formView(),
		m.viewport.View(),
		m.statusView(),
		m.textAreaView(),
		m.help.View(m.keyMap),
	}, "\n")
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, m Model, options ...tea.ProgramOption) error {
	m.ctx = ctx
	options = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, options...)
	p := tea.NewProgram(m, options...)
	_, err := p.Run()
	m.bus.Close()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
