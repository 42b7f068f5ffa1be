package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gmsas95/dosewise/internal/clock"
	"github.com/gmsas95/dosewise/internal/medication"
)

// Agenda is the part of the prescription store the browser drives
type Agenda interface {
	Snapshot() medication.Snapshot
	SelectDate(date time.Time) medication.Snapshot
	MarkTaken(ctx context.Context, id, clock string) (*medication.Prescription, error)
}

type keyMap struct {
	Prev  key.Binding
	Next  key.Binding
	Today key.Binding
	Up    key.Binding
	Down  key.Binding
	Take  key.Binding
	Help  key.Binding
	Quit  key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Prev, k.Next, k.Take, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Prev, k.Next, k.Today},
		{k.Up, k.Down, k.Take},
		{k.Help, k.Quit},
	}
}

var keys = keyMap{
	Prev:  key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "previous day")),
	Next:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next day")),
	Today: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "today")),
	Up:    key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:  key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Take:  key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "mark taken")),
	Help:  key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type tickMsg time.Time

type snapshotMsg medication.Snapshot

type takenMsg struct {
	entry medication.DoseEntry
	err   error
}

// Model is the agenda browser
type Model struct {
	store Agenda
	clock clock.Clock
	keys  keyMap
	help  help.Model

	snap   medication.Snapshot
	cursor int
	status string
	err    error
}

// New builds a browser positioned on the store's selected date
func New(store Agenda, clk clock.Clock) Model {
	return Model{
		store: store,
		clock: clk,
		keys:  keys,
		help:  help.New(),
		snap:  store.Snapshot(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Minute, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width

	case tickMsg:
		// due markers depend on the wall clock
		m.snap = m.store.Snapshot()
		m.clamp()
		return m, tick()

	case snapshotMsg:
		m.snap = medication.Snapshot(msg)
		m.clamp()

	case takenMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
			return m, nil
		}
		m.err = nil
		m.status = fmt.Sprintf("Took %s at %s", msg.entry.Prescription.Name, medication.FormatDisplay(msg.entry.Time))
		m.snap = m.store.Snapshot()
		m.clamp()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.Prev):
			m.selectDate(m.snap.Selected.AddDate(0, 0, -1))
		case key.Matches(msg, m.keys.Next):
			m.selectDate(m.snap.Selected.AddDate(0, 0, 1))
		case key.Matches(msg, m.keys.Today):
			m.selectDate(m.clock.Now())
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.snap.Agenda)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Take):
			cmd := m.take()
			return m, cmd
		}
	}
	return m, nil
}

func (m *Model) selectDate(date time.Time) {
	m.snap = m.store.SelectDate(date)
	m.cursor = 0
	m.status = ""
	m.err = nil
}

func (m *Model) clamp() {
	if m.cursor >= len(m.snap.Agenda) {
		m.cursor = len(m.snap.Agenda) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// take validates the entry under the cursor and returns the command that
// records it
func (m *Model) take() tea.Cmd {
	if len(m.snap.Agenda) == 0 {
		return nil
	}
	entry := m.snap.Agenda[m.cursor]
	now := m.clock.Now()

	switch {
	case !medication.IsSameCalendarDay(m.snap.Selected, now):
		m.status = "Only today's doses can be marked taken"
		return nil
	case entry.Taken:
		m.status = fmt.Sprintf("%s at %s is already taken", entry.Prescription.Name, medication.FormatDisplay(entry.Time))
		return nil
	case !medication.IsDue(entry.Time, now):
		m.status = fmt.Sprintf("%s at %s is not due yet", entry.Prescription.Name, medication.FormatDisplay(entry.Time))
		return nil
	}

	store := m.store
	return func() tea.Msg {
		_, err := store.MarkTaken(context.Background(), entry.Prescription.ID, entry.Time)
		return takenMsg{entry: entry, err: err}
	}
}

func (m Model) View() string {
	now := m.clock.Now()

	var b strings.Builder
	b.WriteString(Title(m.snap.Selected, now))
	b.WriteString("\n\n")

	if len(m.snap.Agenda) == 0 {
		b.WriteString(statusStyle.Render("  No doses scheduled."))
		b.WriteString("\n")
	}
	for i, e := range m.snap.Agenda {
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("› "))
		} else {
			b.WriteString("  ")
		}
		b.WriteString(RenderEntry(e, now))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	case m.status != "":
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

// Run opens the browser full screen until the user quits
func Run(store *medication.Store, clk clock.Clock) error {
	p := tea.NewProgram(New(store, clk), tea.WithAltScreen())
	store.OnChange(func(s medication.Snapshot) {
		// listeners run under the store lock, which Update may be holding
		go p.Send(snapshotMsg(s))
	})
	_, err := p.Run()
	return err
}
