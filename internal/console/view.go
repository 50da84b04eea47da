package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	switch m.mode {
	case modeDetail:
		return m.detailView()
	default:
		return m.listView()
	}
}

func (m Model) listView() string {
	var b strings.Builder
	b.WriteString(titleBarStyle.Render(fmt.Sprintf(" tw2kbot swarm console (%d bots) ", len(m.list.Items()))))
	b.WriteString("\n")
	b.WriteString(focusedBorderStyle.Width(m.width - 2).Render(m.list.View()))
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.err.Error()))
	}
	b.WriteString("\n")
	b.WriteString(statusBarStyle.Render("enter: inspect · q: quit"))
	return b.String()
}

func (m Model) detailView() string {
	var b strings.Builder
	b.WriteString(titleBarStyle.Render(fmt.Sprintf(" bot %s ", m.selected)))
	b.WriteString("\n\n")

	leaseLine := "no hijack lease held"
	if m.leaseHeld {
		leaseLine = leaseHeldStyle.Render(fmt.Sprintf("hijack lease held, expires %s", m.lease.ExpiresAt.Format("15:04:05")))
	}
	b.WriteString(leaseLine)
	b.WriteString("\n\n")

	ts := m.timeSeries
	lines := []string{
		fmt.Sprintf("net worth / turn      %.2f", ts.NetWorthPerTurn),
		fmt.Sprintf("trades / 100 turns    %.2f", ts.TradesPer100Turns),
		fmt.Sprintf("trade success rate    %.0f%%", ts.TradeSuccessRate*100),
		fmt.Sprintf("roi confidence        %.2f", ts.ROIConfidence),
		fmt.Sprintf("no-trade (120+ acts)  %v", ts.NoTrade120P),
	}
	if ts.NoTrade120P {
		lines[4] = errorStyle.Render(lines[4])
	} else {
		lines[4] = goodStyle.Render(lines[4])
	}
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("trade failures: wrong_side=%d no_port=%d no_interaction=%d",
		ts.FailureReasons.WrongSide, ts.FailureReasons.NoPort, ts.FailureReasons.NoInteraction))

	if m.err != nil {
		b.WriteString("\n\n")
		b.WriteString(errorStyle.Render(m.err.Error()))
	}

	b.WriteString("\n\n")
	b.WriteString(statusBarStyle.Render("h: hijack · x: release · r: refresh · esc: back"))
	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}
