package topcmder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"

	"github.com/papercomputeco/streamrelay/pkg/cliui"
	"github.com/papercomputeco/streamrelay/pkg/relayclient"
)

var (
	topTitleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	topMutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	topHeaderStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	topHighlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("235")).Background(lipgloss.Color("214")).Bold(true)
	topErrorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// streamsClient is the part of *relayclient.Client the view uses.
type streamsClient interface {
	Target() string
	ListStreams(ctx context.Context) ([]relayclient.Stream, error)
	CancelStream(ctx context.Context, id string) error
}

type topKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Cancel  key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

func (k topKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Down, k.Up, k.Cancel, k.Refresh, k.Quit}
}

func (k topKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func defaultKeyMap() topKeyMap {
	return topKeyMap{
		Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "up")),
		Down:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
		Cancel:  key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "cancel stream")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

type streamsLoadedMsg struct {
	streams []relayclient.Stream
	at      time.Time
	err     error
}

type streamCancelledMsg struct {
	id  string
	err error
}

type refreshTickMsg time.Time

type topModel struct {
	ctx      context.Context
	client   streamsClient
	interval time.Duration

	streams []relayclient.Stream
	cursor  int
	updated time.Time
	err     error
	notice  string

	width int
	keys  topKeyMap
	help  help.Model
}

func newTopModel(ctx context.Context, client streamsClient, interval time.Duration) topModel {
	return topModel{
		ctx:      ctx,
		client:   client,
		interval: interval,
		keys:     defaultKeyMap(),
		help:     help.New(),
	}
}

func (m topModel) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.tick())
}

func (m topModel) fetch() tea.Cmd {
	return func() tea.Msg {
		streams, err := m.client.ListStreams(m.ctx)
		return streamsLoadedMsg{streams: streams, at: time.Now(), err: err}
	}
}

func (m topModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return refreshTickMsg(t)
	})
}

func (m topModel) cancel(id string) tea.Cmd {
	return func() tea.Msg {
		return streamCancelledMsg{id: id, err: m.client.CancelStream(m.ctx, id)}
	}
}

func (m topModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case streamsLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.streams = msg.streams
			m.updated = msg.at
		}
		m.cursor = min(m.cursor, max(len(m.streams)-1, 0))
		return m, nil

	case refreshTickMsg:
		return m, tea.Batch(m.fetch(), m.tick())

	case streamCancelledMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("cancel %s failed: %v", msg.id, msg.err)
		} else {
			m.notice = "cancelled " + msg.id
		}
		return m, m.fetch()

	case tea.KeyPressMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.streams)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Refresh):
			return m, m.fetch()
		case key.Matches(msg, m.keys.Cancel):
			if len(m.streams) > 0 {
				return m, m.cancel(m.streams[m.cursor].ID)
			}
		}
	}

	return m, nil
}

func (m topModel) View() tea.View {
	v := tea.NewView(m.render(time.Now()))
	v.AltScreen = true
	return v
}

func (m topModel) render(now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", topTitleStyle.Render("relay top"), topMutedStyle.Render(m.client.Target()))
	if !m.updated.IsZero() {
		fmt.Fprintf(&b, "%s\n", topMutedStyle.Render(fmt.Sprintf("%d live · updated %s", len(m.streams), m.updated.Format(time.TimeOnly))))
	}
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(topErrorStyle.Render(m.err.Error()) + "\n")
	case len(m.streams) == 0:
		b.WriteString(topMutedStyle.Render("no active streams") + "\n")
	default:
		b.WriteString(topHeaderStyle.Render(fmt.Sprintf("  %-10s %s", "AGE", "STREAM")) + "\n")
		for i, s := range m.streams {
			line := fmt.Sprintf("  %-10s %s", cliui.FormatDuration(now.Sub(s.StartedAt)), s.ID)
			if m.width > 0 {
				line = ansi.Truncate(line, m.width, "…")
			}
			if i == m.cursor {
				line = topHighlightStyle.Render(line)
			}
			b.WriteString(line + "\n")
		}
	}

	if m.notice != "" {
		b.WriteString("\n" + topMutedStyle.Render(m.notice) + "\n")
	}

	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}
