package console

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tw2kbot/tw2kbot/internal/swarm"
)

type mode int

const (
	modeList mode = iota
	modeDetail
)

const refreshInterval = 3 * time.Second
const defaultLeaseSeconds = 120

// BotItem adapts a swarm.BotStatus to bubbles/list.Item, the way
// configtool/strings adapts its own domain types into list panes.
type BotItem struct {
	Status swarm.BotStatus
}

func (i BotItem) FilterValue() string { return i.Status.ID }
func (i BotItem) Title() string       { return fmt.Sprintf("%s  [%s]", i.Status.ID, i.Status.State) }
func (i BotItem) Description() string {
	return fmt.Sprintf("sector %d  credits %d  net worth %d", i.Status.Sector, i.Status.Credits, i.Status.NetWorthEstimate)
}

type statusMsg struct {
	statuses []swarm.BotStatus
	err      error
}

type timeSeriesMsg struct {
	summary swarm.TimeSeriesSummary
	err     error
}

type leaseMsg struct {
	lease swarm.HijackLease
	held  bool
	err   error
}

type tickMsg time.Time

// Model is the operator console's Bubble Tea program state: a list of
// every bot the swarm manager tracks, and a detail pane for one bot
// selected out of that list, mirroring the teacher's mode-dispatched
// Update found in internal/usereditor.
type Model struct {
	client *Client

	mode mode
	list list.Model

	selected   string
	lease      swarm.HijackLease
	leaseHeld  bool
	timeSeries swarm.TimeSeriesSummary

	width, height int
	err           error
}

// NewModel builds a console Model against client, pre-sized to a
// reasonable terminal default (a real size arrives via the first
// tea.WindowSizeMsg).
func NewModel(client *Client) Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "tw2kbot swarm"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(true)
	return Model{client: client, mode: modeList, list: l, width: 80, height: 24}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchStatus(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) fetchStatus() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		statuses, err := client.Status(ctx)
		return statusMsg{statuses: statuses, err: err}
	}
}

func (m Model) fetchTimeSeries(botID string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		summary, err := client.TimeSeries(ctx, botID, 30)
		return timeSeriesMsg{summary: summary, err: err}
	}
}

func (m Model) beginHijack(botID string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		lease, err := client.HijackBegin(ctx, botID, defaultLeaseSeconds)
		return leaseMsg{lease: lease, held: err == nil, err: err}
	}
}

func (m Model) releaseHijack(botID string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := client.HijackRelease(ctx, botID)
		return leaseMsg{held: false, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(msg.Width-2, msg.Height-6)
		return m, nil

	case tickMsg:
		cmds := []tea.Cmd{tick(), m.fetchStatus()}
		if m.mode == modeDetail {
			cmds = append(cmds, m.fetchTimeSeries(m.selected))
		}
		return m, tea.Batch(cmds...)

	case statusMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		items := make([]list.Item, len(msg.statuses))
		for i, s := range msg.statuses {
			items[i] = BotItem{Status: s}
		}
		cmd := m.list.SetItems(items)
		return m, cmd

	case timeSeriesMsg:
		if msg.err == nil {
			m.timeSeries = msg.summary
		}
		return m, nil

	case leaseMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.leaseHeld = msg.held
		if msg.held {
			m.lease = msg.lease
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeList:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "enter":
			if item, ok := m.list.SelectedItem().(BotItem); ok {
				m.selected = item.Status.ID
				m.mode = modeDetail
				m.leaseHeld = false
				return m, m.fetchTimeSeries(m.selected)
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd

	case modeDetail:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc", "q":
			if m.leaseHeld {
				return m, m.releaseHijack(m.selected)
			}
			m.mode = modeList
			return m, nil
		case "h":
			return m, m.beginHijack(m.selected)
		case "x":
			return m, m.releaseHijack(m.selected)
		case "r":
			return m, tea.Batch(m.fetchStatus(), m.fetchTimeSeries(m.selected))
		}
		return m, nil
	}
	return m, nil
}
